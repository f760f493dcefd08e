package logging

import (
	"net/http"
	"time"
)

// DebugTransport wraps an http.RoundTripper and logs every request and
// response at DEBUG level. Authorization material is redacted by the
// logger's redaction pass, so URLs and headers can be logged verbatim.
type DebugTransport struct {
	base   http.RoundTripper
	logger Logger
}

// NewDebugTransport wraps base (http.DefaultTransport when nil).
func NewDebugTransport(logger Logger, base http.RoundTripper) *DebugTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &DebugTransport{base: base, logger: logger}
}

func (t *DebugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	t.logger.Debug("http request",
		F("method", req.Method),
		F("url", req.URL.String()),
	)

	resp, err := t.base.RoundTrip(req)
	elapsed := time.Since(start)

	if err != nil {
		t.logger.Debug("http error",
			F("method", req.Method),
			F("url", req.URL.String()),
			F("duration_ms", elapsed.Milliseconds()),
			F("error", err.Error()),
		)
		return nil, err
	}

	t.logger.Debug("http response",
		F("method", req.Method),
		F("url", req.URL.String()),
		F("status", resp.StatusCode),
		F("duration_ms", elapsed.Milliseconds()),
	)
	return resp, nil
}
