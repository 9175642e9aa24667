package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	nimbus "github.com/nimbuscloud/nimbus-go-sdk"
	"github.com/nimbuscloud/nimbus-go-sdk/core"
)

// SharedKeyCredential authenticates requests with the storage
// account's shared key. The key is the base64-encoded value from the
// account's access keys page.
type SharedKeyCredential struct {
	account string
	key     []byte
}

// NewSharedKeyCredential decodes the account key and returns a
// credential suitable for NewClientWithSharedKey.
func NewSharedKeyCredential(account, key string) (*SharedKeyCredential, error) {
	if account == "" {
		return nil, errors.New("account name cannot be empty")
	}
	decoded, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, errors.Wrap(err, "decoding account key")
	}
	return &SharedKeyCredential{account: account, key: decoded}, nil
}

// AccountName returns the storage account this credential signs for.
func (c *SharedKeyCredential) AccountName() string { return c.account }

func (c *SharedKeyCredential) sign(message string) string {
	h := hmac.New(sha256.New, c.key)
	h.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// stringToSign canonicalizes the request into the payload covered by
// the signature: verb, content headers, every x-nim-* header in sorted
// order, and the canonicalized resource.
func (c *SharedKeyCredential) stringToSign(req *http.Request) string {
	var sb strings.Builder
	sb.WriteString(req.Method)
	sb.WriteByte('\n')

	contentLength := req.Header.Get("Content-Length")
	if contentLength == "0" {
		contentLength = ""
	}
	sb.WriteString(contentLength)
	sb.WriteByte('\n')
	sb.WriteString(req.Header.Get("Content-MD5"))
	sb.WriteByte('\n')
	sb.WriteString(req.Header.Get(nimbus.ContentTypeHeader))
	sb.WriteByte('\n')

	sb.WriteString(c.canonicalizedHeaders(req.Header))
	sb.WriteString(c.canonicalizedResource(req.URL))
	return sb.String()
}

func (c *SharedKeyCredential) canonicalizedHeaders(header http.Header) string {
	names := make([]string, 0, len(header))
	for name := range header {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, nimbus.CanonicalHeaderPrefix) {
			names = append(names, lower)
		}
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		sb.WriteString(name)
		sb.WriteByte(':')
		sb.WriteString(strings.Join(header.Values(http.CanonicalHeaderKey(name)), ","))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (c *SharedKeyCredential) canonicalizedResource(u *url.URL) string {
	var sb strings.Builder
	sb.WriteByte('/')
	sb.WriteString(c.account)
	sb.WriteString(u.EscapedPath())

	params := u.Query()
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, strings.ToLower(name))
	}
	sort.Strings(names)
	for _, name := range names {
		values := params[name]
		sort.Strings(values)
		sb.WriteByte('\n')
		sb.WriteString(name)
		sb.WriteByte(':')
		sb.WriteString(strings.Join(values, ","))
	}
	return sb.String()
}

type sharedKeyPolicy struct {
	cred *SharedKeyCredential
}

func newSharedKeyPolicy(cred *SharedKeyCredential) core.Policy {
	return &sharedKeyPolicy{cred: cred}
}

// Do stamps the request with a fresh date and an Authorization header
// computed over the canonicalized request. It runs per retry so every
// attempt carries a valid signature.
func (p *sharedKeyPolicy) Do(req *core.Request) (*http.Response, error) {
	raw := req.Raw()
	raw.Header.Set(nimbus.DateHeader, time.Now().UTC().Format(http.TimeFormat))
	signature := p.cred.sign(p.cred.stringToSign(raw))
	raw.Header.Set("Authorization", "NimbusKey "+p.cred.account+":"+signature)
	return req.Next()
}
