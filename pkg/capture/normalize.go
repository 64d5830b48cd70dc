package capture

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/VadymVolin/unde-library/pkg/wire"
)

// DefaultMaxBodySize is the largest body rendered into a record.
const DefaultMaxBodySize = 256 * 1024

// RedactedValue replaces the values of redacted headers.
const RedactedValue = "<redacted>"

// Options controls how exchanges are rendered.
type Options struct {
	// MaxBodySize caps rendered bodies (default 256 KiB). Larger bodies are
	// truncated with a marker.
	MaxBodySize int

	// RedactHeaders lists header names whose values are replaced.
	RedactHeaders []string
}

func (o Options) maxBody() int {
	if o.MaxBodySize <= 0 {
		return DefaultMaxBodySize
	}
	return o.MaxBodySize
}

// Exchange is one observed HTTP round trip, before normalization.
type Exchange struct {
	Request     *http.Request
	RequestBody []byte
	RequestTime time.Time

	// Response is nil when the round trip failed.
	Response     *http.Response
	ResponseBody []byte
	ResponseTime time.Time

	// Err is the transport error, if any.
	Err error
}

// Normalize converts an exchange into the record relayed to the desktop
// tool. A failed round trip yields response code 0 with the error as its
// message.
func Normalize(ex Exchange, opts Options) wire.RequestResponse {
	return wire.RequestResponse{
		Request:  NormalizeRequest(ex.Request, ex.RequestBody, ex.RequestTime, opts),
		Response: normalizeResponse(ex, opts),
	}
}

// NormalizeRequest converts req into a request record.
func NormalizeRequest(req *http.Request, body []byte, at time.Time, opts Options) wire.RequestRecord {
	rec := wire.RequestRecord{
		RequestTime: at.UnixMilli(),
		Headers:     headers(req.Header, opts),
		Body:        RenderBody(body, req.Header, opts.maxBody()),
	}
	rec.Method = req.Method
	if rec.Method == "" {
		rec.Method = http.MethodGet
	}
	if req.URL != nil {
		rec.URL = req.URL.String()
	}
	return rec
}

// NormalizeResponse converts resp into a response record.
func NormalizeResponse(resp *http.Response, body []byte, at time.Time, opts Options) wire.ResponseRecord {
	return wire.ResponseRecord{
		ResponseTime: at.UnixMilli(),
		Code:         resp.StatusCode,
		Message:      statusMessage(resp),
		Headers:      headers(resp.Header, opts),
		Protocol:     strings.ToLower(resp.Proto),
		Body:         RenderBody(body, resp.Header, opts.maxBody()),
	}
}

func normalizeResponse(ex Exchange, opts Options) wire.ResponseRecord {
	if ex.Response != nil {
		return NormalizeResponse(ex.Response, ex.ResponseBody, ex.ResponseTime, opts)
	}
	rec := wire.ResponseRecord{
		ResponseTime: ex.ResponseTime.UnixMilli(),
		Headers:      wire.Headers{},
	}
	if ex.Err != nil {
		rec.Message = ex.Err.Error()
	}
	return rec
}

// RenderBody renders a body as text. It returns nil for an empty body,
// inflates gzip content, replaces binary content with a placeholder and
// truncates text beyond limit.
func RenderBody(body []byte, header http.Header, limit int) *string {
	if len(body) == 0 {
		return nil
	}

	if strings.EqualFold(header.Get("Content-Encoding"), "gzip") {
		inflated, err := gunzip(body, limit)
		if err != nil {
			return wire.StringPtr(fmt.Sprintf("<gzip body: %d bytes, undecodable>", len(body)))
		}
		body = inflated
	}

	if isBinary(body) {
		ct := header.Get("Content-Type")
		if ct == "" {
			ct = http.DetectContentType(body)
		}
		return wire.StringPtr(fmt.Sprintf("<binary body: %d bytes, %s>", len(body), ct))
	}

	if len(body) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		return wire.StringPtr(fmt.Sprintf("%s\n<truncated to %d bytes>", body[:cut], limit))
	}
	return wire.StringPtr(string(body))
}

// gunzip inflates at most limit+1 bytes, enough to detect truncation. A
// stream cut short still yields what could be inflated.
func gunzip(body []byte, limit int) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, int64(limit)+1))
	if err != nil && !(errors.Is(err, io.ErrUnexpectedEOF) && len(out) > 0) {
		return nil, err
	}
	return out, nil
}

// isBinary reports whether b looks like non-text content. Only a prefix is
// inspected. A rune split at the end, by the sniff window or by the body
// size cap, is tolerated.
func isBinary(b []byte) bool {
	const sniff = 1024
	if len(b) > sniff {
		b = b[:sniff]
	}
	b = trimPartialRune(b)
	if bytes.IndexByte(b, 0) >= 0 {
		return true
	}
	return !utf8.Valid(b)
}

// trimPartialRune drops an incomplete UTF-8 sequence at the end of b.
func trimPartialRune(b []byte) []byte {
	for i := 1; i < utf8.UTFMax && i <= len(b); i++ {
		if utf8.RuneStart(b[len(b)-i]) {
			if !utf8.FullRune(b[len(b)-i:]) {
				return b[:len(b)-i]
			}
			return b
		}
	}
	return b
}

func headers(h http.Header, opts Options) wire.Headers {
	out := wire.Headers(h.Clone())
	if out == nil {
		out = wire.Headers{}
	}
	for _, name := range opts.RedactHeaders {
		key := http.CanonicalHeaderKey(name)
		if vals, ok := out[key]; ok {
			redacted := make([]string, len(vals))
			for i := range redacted {
				redacted[i] = RedactedValue
			}
			out[key] = redacted
		}
	}
	return out
}

// statusMessage returns the reason phrase, e.g. "Not Found".
func statusMessage(resp *http.Response) string {
	if _, reason, ok := strings.Cut(resp.Status, " "); ok && reason != "" {
		return reason
	}
	return http.StatusText(resp.StatusCode)
}
