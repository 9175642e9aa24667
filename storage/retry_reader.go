package storage

import (
	"context"
	"io"
	"net/http"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"

	"github.com/nimbuscloud/nimbus-go-sdk/core"
)

type downloadInfo struct {
	bucket string
	key    string
	etag   string
	offset int64
	count  int64
}

// RetryReader wraps a download body and rides out intermittent read
// failures by re-requesting the unread remainder as a ranged GET. The
// re-request carries If-Match with the original ETag so a concurrently
// rewritten object fails loudly instead of splicing two versions.
type RetryReader struct {
	ctx        context.Context
	client     *Client
	body       io.ReadCloser
	info       downloadInfo
	read       int64
	maxRetries int
	retries    int
	closed     bool
}

func newRetryReader(ctx context.Context, client *Client, resp *http.Response, info downloadInfo, maxRetries int) *RetryReader {
	return &RetryReader{
		ctx:        ctx,
		client:     client,
		body:       resp.Body,
		info:       info,
		maxRetries: maxRetries,
	}
}

func (r *RetryReader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, errors.New("read on closed retry reader")
	}
	for {
		n, err := r.body.Read(p)
		r.read += int64(n)
		if err == nil || err == io.EOF {
			return n, err
		}
		if rerr := r.resume(err); rerr != nil {
			return n, rerr
		}
		// bytes read alongside the failure were delivered into p and
		// are counted in the resume offset, so hand them back before
		// touching the new body
		if n > 0 {
			return n, nil
		}
	}
}

// resume replaces the body with a fresh ranged response picking up
// where the last read stopped.
func (r *RetryReader) resume(cause error) error {
	if r.retries >= r.maxRetries {
		return errors.Wrapf(cause, "download interrupted after %d resume attempts", r.retries)
	}
	r.retries++

	grip.Debug(message.Fields{
		"message": "resuming interrupted download",
		"bucket":  r.info.bucket,
		"key":     r.info.key,
		"offset":  r.info.offset + r.read,
		"attempt": r.retries,
		"cause":   cause.Error(),
	})
	r.body.Close()

	remaining := HTTPRange{Offset: r.info.offset + r.read}
	if r.info.count > 0 {
		remaining.Count = r.info.count - r.read
	}

	req, err := r.client.newRequest(r.ctx, http.MethodGet, nil, r.info.bucket, r.info.key)
	if err != nil {
		return err
	}
	rangeSpec := remaining.format()
	if rangeSpec != "" {
		req.Raw().Header.Set("Range", rangeSpec)
	}
	if r.info.etag != "" {
		req.Raw().Header.Set("If-Match", r.info.etag)
	}

	resp, err := r.client.pl.Do(req)
	if err != nil {
		return errors.Wrap(err, "re-requesting interrupted download")
	}
	// a ranged re-request must come back partial; a 200 here means the
	// server ignored the range and is restarting from byte zero
	wantStatus := http.StatusPartialContent
	if rangeSpec == "" {
		wantStatus = http.StatusOK
	}
	if !core.HasStatusCode(resp, wantStatus) {
		defer core.Drain(resp)
		if resp.StatusCode == http.StatusOK {
			return errors.New("server ignored the range request while resuming a download")
		}
		return errors.Wrap(core.NewResponseError(resp), "re-requesting interrupted download")
	}
	r.body = resp.Body
	return nil
}

func (r *RetryReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.body.Close()
}
