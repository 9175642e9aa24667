package storage

import (
	"encoding/base64"
	"net/http"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSharedKeyCredential(t *testing.T) {
	key := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))

	Convey("With a shared key credential", t, func() {

		cred, err := NewSharedKeyCredential("acct", key)
		So(err, ShouldBeNil)
		So(cred.AccountName(), ShouldEqual, "acct")

		Convey("constructing one with a bad key or empty account fails", func() {
			_, err := NewSharedKeyCredential("acct", "not base64!!")
			So(err, ShouldNotBeNil)
			_, err = NewSharedKeyCredential("", key)
			So(err, ShouldNotBeNil)
		})

		Convey("the string to sign covers the verb, content headers, and resource", func() {
			req, err := http.NewRequest(http.MethodPut, "https://acct.storage.nimbus.cloud/bucket/key?api-version=2026-06-01", nil)
			So(err, ShouldBeNil)
			req.Header.Set("Content-Length", "11")
			req.Header.Set("Content-Type", "text/plain")
			req.Header.Set("x-nim-date", "Sat, 30 Aug 2026 12:00:00 GMT")
			req.Header.Set("x-nim-meta-owner", "ops")

			sts := cred.stringToSign(req)
			lines := strings.Split(sts, "\n")
			So(lines[0], ShouldEqual, http.MethodPut)
			So(lines[1], ShouldEqual, "11")
			So(lines[3], ShouldEqual, "text/plain")
			So(sts, ShouldContainSubstring, "x-nim-date:Sat, 30 Aug 2026 12:00:00 GMT\n")
			So(sts, ShouldContainSubstring, "x-nim-meta-owner:ops\n")
			So(sts, ShouldContainSubstring, "/acct/bucket/key\napi-version:2026-06-01")
		})

		Convey("canonicalized headers come out sorted", func() {
			req, err := http.NewRequest(http.MethodGet, "https://acct.storage.nimbus.cloud/bucket", nil)
			So(err, ShouldBeNil)
			req.Header.Set("x-nim-meta-b", "2")
			req.Header.Set("x-nim-meta-a", "1")
			req.Header.Set("x-nim-date", "Sat, 30 Aug 2026 12:00:00 GMT")
			req.Header.Set("Accept", "application/json")

			canonical := cred.canonicalizedHeaders(req.Header)
			So(canonical, ShouldNotContainSubstring, "accept")
			dateIdx := strings.Index(canonical, "x-nim-date")
			aIdx := strings.Index(canonical, "x-nim-meta-a")
			bIdx := strings.Index(canonical, "x-nim-meta-b")
			So(dateIdx, ShouldBeLessThan, aIdx)
			So(aIdx, ShouldBeLessThan, bIdx)
		})

		Convey("a zero content length is signed as the empty string", func() {
			req, err := http.NewRequest(http.MethodDelete, "https://acct.storage.nimbus.cloud/bucket/key", nil)
			So(err, ShouldBeNil)
			req.Header.Set("Content-Length", "0")

			lines := strings.Split(cred.stringToSign(req), "\n")
			So(lines[1], ShouldEqual, "")
		})

		Convey("identical requests sign identically and differing keys do not", func() {
			req, err := http.NewRequest(http.MethodGet, "https://acct.storage.nimbus.cloud/bucket/key", nil)
			So(err, ShouldBeNil)
			req.Header.Set("x-nim-date", "Sat, 30 Aug 2026 12:00:00 GMT")

			first := cred.sign(cred.stringToSign(req))
			second := cred.sign(cred.stringToSign(req))
			So(first, ShouldEqual, second)

			otherKey := base64.StdEncoding.EncodeToString([]byte("ffffffffffffffffffffffffffffffff"))
			other, err := NewSharedKeyCredential("acct", otherKey)
			So(err, ShouldBeNil)
			So(other.sign(other.stringToSign(req)), ShouldNotEqual, first)
		})
	})
}
