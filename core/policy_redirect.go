package core

import (
	"net/http"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

// maxRedirects caps how many Location hops the policy will follow.
const maxRedirects = 8

type redirectPolicy struct{}

// newRedirectPolicy follows 3xx responses itself; the default
// transport has redirect following disabled so credentials never leak
// through an automatic cross-host hop.
func newRedirectPolicy() Policy {
	return redirectPolicy{}
}

var redirectStatusCodes = []int{
	http.StatusMovedPermanently,
	http.StatusFound,
	http.StatusSeeOther,
	http.StatusTemporaryRedirect,
	http.StatusPermanentRedirect,
}

func (redirectPolicy) Do(req *Request) (*http.Response, error) {
	cur := req
	for hops := 0; ; hops++ {
		resp, err := cur.Next()
		if err != nil {
			return nil, err
		}
		if !HasStatusCode(resp, redirectStatusCodes...) {
			return resp, nil
		}
		if hops >= maxRedirects {
			Drain(resp)
			return nil, errors.Errorf("stopped after following %d redirects", maxRedirects)
		}

		location, err := resp.Location()
		if err != nil {
			Drain(resp)
			return nil, errors.Wrap(err, "reading redirect location")
		}

		next := cur.Clone(cur.Raw().Context())
		crossHost := next.Raw().URL.Host != location.Host
		next.Raw().URL = location
		next.Raw().Host = ""
		if crossHost {
			next.Raw().Header.Del("Authorization")
		}
		if resp.StatusCode == http.StatusSeeOther {
			next.Raw().Method = http.MethodGet
			next.Raw().Body = nil
			next.Raw().ContentLength = 0
			next.Raw().Header.Del("Content-Length")
			next.Raw().Header.Del("Content-Type")
			next.body = nil
		} else if err := next.RewindBody(); err != nil {
			Drain(resp)
			return nil, err
		}

		grip.Debug(message.Fields{
			"message":    "following redirect",
			"status":     resp.StatusCode,
			"location":   location.Redacted(),
			"cross_host": crossHost,
			"hop":        hops + 1,
		})
		Drain(resp)
		cur = next
	}
}
