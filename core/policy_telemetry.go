package core

import (
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

type telemetryPolicy struct {
	userAgent string
}

// newTelemetryPolicy builds the User-Agent string once per pipeline:
// "<appID> nimbus-sdk-go-<module>/<version> (<go version>; <os>; <arch>)".
func newTelemetryPolicy(module, version, applicationID string) Policy {
	parts := []string{}
	if applicationID != "" {
		// application IDs are capped so one misbehaving caller
		// cannot flood the header
		if len(applicationID) > 24 {
			applicationID = applicationID[:24]
		}
		parts = append(parts, strings.ReplaceAll(applicationID, " ", "/"))
	}
	parts = append(parts, fmt.Sprintf("nimbus-sdk-go-%s/%s %s", module, version, platformInfo()))
	return &telemetryPolicy{userAgent: strings.Join(parts, " ")}
}

func platformInfo() string {
	return fmt.Sprintf("(%s; %s; %s)", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func (p *telemetryPolicy) Do(req *Request) (*http.Response, error) {
	if req.Raw().Header.Get("User-Agent") == "" {
		req.Raw().Header.Set("User-Agent", p.userAgent)
	}
	return req.Next()
}
