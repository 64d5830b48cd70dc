package wire

import (
	"fmt"
	"time"
)

// Headers is an HTTP header multimap. A name maps to its values in the
// order they appeared, since headers may repeat.
type Headers map[string][]string

// Clone returns a deep copy of h.
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	out := make(Headers, len(h))
	for k, v := range h {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// RequestRecord is a normalized intercepted HTTP request.
type RequestRecord struct {
	// RequestTime is the Unix millisecond timestamp the request was sent.
	RequestTime int64   `json:"requestTime"`
	URL         string  `json:"url"`
	Method      string  `json:"method"`
	Headers     Headers `json:"headers"`
	Body        *string `json:"body"`
}

// ResponseRecord is a normalized intercepted HTTP response.
type ResponseRecord struct {
	// ResponseTime is the Unix millisecond timestamp the response was received.
	ResponseTime int64   `json:"responseTime"`
	Code         int     `json:"code"`
	Message      string  `json:"message"`
	Headers      Headers `json:"headers"`
	Protocol     string  `json:"protocol"`
	Body         *string `json:"body"`
}

// RequestResponse pairs one request with its response.
// It is the payload of a Network message and is treated as immutable
// once handed to the transport.
type RequestResponse struct {
	Request  RequestRecord  `json:"request"`
	Response ResponseRecord `json:"response"`
}

// Duration returns the time between request and response.
func (rr RequestResponse) Duration() time.Duration {
	return time.Duration(rr.Response.ResponseTime-rr.Request.RequestTime) * time.Millisecond
}

// Summary returns a one-line description such as "GET https://x/y -> 200".
func (rr RequestResponse) Summary() string {
	return fmt.Sprintf("%s %s -> %d", rr.Request.Method, rr.Request.URL, rr.Response.Code)
}

// StringPtr returns a pointer to s, for optional body fields.
func StringPtr(s string) *string {
	return &s
}
