package client

import (
	"net/http"

	"github.com/rs/zerolog"

	"restqa/internal/metrics"
)

// Hook observes every attempt made from a baseline clone.
// AfterResponse always receives the attempt's request side; StatusCode is
// zero when err is non-nil.
type Hook interface {
	BeforeRequest(req *http.Request, body []byte, attempt int)
	AfterResponse(resp *Response, err error)
}

// LogHook records full request and response content at debug level and a
// one-line summary at info. Authorization and the Secrets headers are
// masked.
type LogHook struct {
	Log     zerolog.Logger
	Secrets []string
}

func (h LogHook) BeforeRequest(req *http.Request, body []byte, attempt int) {
	h.Log.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Int("attempt", attempt).
		Interface("headers", redact(req.Header, h.Secrets)).
		Bytes("body", body).
		Msg("request")
}

func (h LogHook) AfterResponse(resp *Response, err error) {
	if err != nil {
		h.Log.Warn().Err(err).
			Str("method", resp.Method).
			Int("attempt", resp.Attempts).
			Dur("elapsed", resp.Elapsed).
			Msg("request failed")
		return
	}
	h.Log.Info().
		Str("method", resp.Method).
		Str("url", resp.URL).
		Int("status", resp.StatusCode).
		Int("attempt", resp.Attempts).
		Dur("elapsed", resp.Elapsed).
		Msg("response")
	h.Log.Debug().
		Interface("headers", resp.Header).
		Bytes("body", resp.Body).
		Msg("response body")
}

// MetricsHook counts attempts and their latency.
type MetricsHook struct {
	M *metrics.Metrics
}

func (h MetricsHook) BeforeRequest(*http.Request, []byte, int) {}

func (h MetricsHook) AfterResponse(resp *Response, err error) {
	status := resp.StatusCode
	if err != nil {
		status = 0
	}
	h.M.ObserveRequest(resp.Method, status, resp.Elapsed)
	if resp.Attempts > 1 {
		h.M.ObserveRetry()
	}
}

// HookFunc adapts a function observing finished attempts.
type HookFunc func(resp *Response, err error)

func (f HookFunc) BeforeRequest(*http.Request, []byte, int) {}

func (f HookFunc) AfterResponse(resp *Response, err error) { f(resp, err) }

func redact(h http.Header, secrets []string) http.Header {
	out := h.Clone()
	for _, name := range append([]string{"Authorization"}, secrets...) {
		if name != "" && out.Get(name) != "" {
			out.Set(name, "[redacted]")
		}
	}
	return out
}
