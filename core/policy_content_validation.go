package core

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"hash/crc64"
	"io"
	"net/http"

	"github.com/pkg/errors"

	nimbus "github.com/nimbuscloud/nimbus-go-sdk"
)

// ChecksumOptions is set as an operation value by service clients that
// want transactional content validation on an upload or download.
type ChecksumOptions struct {
	// ComputeMD5 / ComputeCRC64 attach the matching checksum header to
	// the outgoing body.
	ComputeMD5   bool
	ComputeCRC64 bool

	// ValidateDownload checks whole-body (non-206) responses against
	// the checksum headers the service returned. The body is buffered
	// to do so.
	ValidateDownload bool
}

// ChecksumMismatchError is returned when a downloaded body does not
// match the service-declared checksum. It is never retried; the
// payload is corrupt, not the connection.
type ChecksumMismatchError struct {
	Algorithm string
	Expected  string
	Computed  string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("%s mismatch: service declared %s, computed %s", e.Algorithm, e.Expected, e.Computed)
}

// NonRetriable marks the error terminal for the retry policy.
func (e *ChecksumMismatchError) NonRetriable() {}

var crc64Table = crc64.MakeTable(crc64.ECMA)

type contentValidationPolicy struct{}

func newContentValidationPolicy() Policy {
	return contentValidationPolicy{}
}

func (contentValidationPolicy) Do(req *Request) (*http.Response, error) {
	var opts ChecksumOptions
	if !req.OperationValue(&opts) {
		return req.Next()
	}

	if req.Body() != nil && (opts.ComputeMD5 || opts.ComputeCRC64) {
		if err := attachChecksums(req, opts); err != nil {
			return nil, err
		}
	}

	resp, err := req.Next()
	if err != nil || !opts.ValidateDownload {
		return resp, err
	}
	if resp.StatusCode != http.StatusOK {
		// partial and error responses are not validated
		return resp, nil
	}
	if err := validatePayload(resp); err != nil {
		Drain(resp)
		return nil, err
	}
	return resp, nil
}

func attachChecksums(req *Request, opts ChecksumOptions) error {
	md5Sum := md5.New()
	crcSum := crc64.New(crc64Table)
	if _, err := io.Copy(io.MultiWriter(md5Sum, crcSum), req.Body()); err != nil {
		return errors.Wrap(err, "hashing request body")
	}
	if err := req.RewindBody(); err != nil {
		return err
	}
	if opts.ComputeMD5 {
		req.Raw().Header.Set("Content-MD5", base64.StdEncoding.EncodeToString(md5Sum.Sum(nil)))
	}
	if opts.ComputeCRC64 {
		req.Raw().Header.Set(nimbus.ContentCRC64Header, encodeCRC64(crcSum.Sum64()))
	}
	return nil
}

func validatePayload(resp *http.Response) error {
	expectedMD5 := resp.Header.Get("Content-MD5")
	expectedCRC := resp.Header.Get(nimbus.ContentCRC64Header)
	if expectedMD5 == "" && expectedCRC == "" {
		return nil
	}

	body, err := Payload(resp)
	if err != nil {
		return err
	}

	if expectedMD5 != "" {
		sum := md5.Sum(body)
		computed := base64.StdEncoding.EncodeToString(sum[:])
		if computed != expectedMD5 {
			return &ChecksumMismatchError{Algorithm: "Content-MD5", Expected: expectedMD5, Computed: computed}
		}
	}
	if expectedCRC != "" {
		computed := encodeCRC64(crc64.Checksum(body, crc64Table))
		if computed != expectedCRC {
			return &ChecksumMismatchError{Algorithm: nimbus.ContentCRC64Header, Expected: expectedCRC, Computed: computed}
		}
	}
	return nil
}

func encodeCRC64(sum uint64) string {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, sum)
	return base64.StdEncoding.EncodeToString(buf)
}
