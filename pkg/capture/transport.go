package capture

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/VadymVolin/unde-library/pkg/wire"
)

// Sender accepts messages for relay. *connection.Manager implements it.
type Sender interface {
	Send(msg wire.Message)
}

// Transport is an http.RoundTripper that relays every exchange it carries
// as a Network message. The exchange is sent once the response body has
// been read to the end or closed.
type Transport struct {
	// Base performs the actual round trip. Nil uses http.DefaultTransport.
	Base http.RoundTripper

	// Sender receives the captured exchanges. Nil disables capture.
	Sender Sender

	Options Options

	// Logger receives capture diagnostics. Nil uses slog.Default().
	Logger *slog.Logger

	now func() time.Time
}

// NewTransport wraps base.
func NewTransport(base http.RoundTripper, sender Sender, opts Options) *Transport {
	return &Transport{Base: base, Sender: sender, Options: opts}
}

// NewClient returns an http.Client whose requests are captured.
func NewClient(sender Sender, opts Options) *http.Client {
	return &http.Client{Transport: NewTransport(http.DefaultTransport, sender, opts)}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Sender == nil {
		return t.base().RoundTrip(req)
	}

	start := t.clock()
	reqBody, out, err := t.captureRequest(req)
	if err != nil {
		return nil, err
	}

	resp, err := t.base().RoundTrip(out)
	received := t.clock()
	if err != nil {
		t.emit(Exchange{
			Request:      req,
			RequestBody:  reqBody,
			RequestTime:  start,
			ResponseTime: received,
			Err:          err,
		})
		return nil, err
	}

	if resp.Body == nil {
		resp.Body = http.NoBody
	}
	resp.Body = &bodyRecorder{
		ReadCloser: resp.Body,
		limit:      t.Options.maxBody(),
		done: func(body []byte) {
			t.emit(Exchange{
				Request:      req,
				RequestBody:  reqBody,
				RequestTime:  start,
				Response:     resp,
				ResponseBody: body,
				ResponseTime: received,
			})
		},
	}
	return resp, nil
}

// captureRequest copies the request body without consuming it. When the
// body cannot be replayed through GetBody, it is buffered and a clone of
// req carries the copy.
func (t *Transport) captureRequest(req *http.Request) ([]byte, *http.Request, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, req, nil
	}

	if req.GetBody != nil {
		rc, err := req.GetBody()
		if err != nil {
			t.logger().Debug("request body not replayable", "url", req.URL, "error", err)
			return nil, req, nil
		}
		defer rc.Close()
		body, err := io.ReadAll(io.LimitReader(rc, int64(t.Options.maxBody())+1))
		if err != nil {
			t.logger().Debug("request body copy failed", "url", req.URL, "error", err)
			return nil, req, nil
		}
		return body, req, nil
	}

	body, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, nil, err
	}

	out := req.Clone(req.Context())
	out.Body = io.NopCloser(bytes.NewReader(body))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	return body, out, nil
}

func (t *Transport) emit(ex Exchange) {
	rr := Normalize(ex, t.Options)
	t.logger().Debug("captured exchange", "summary", rr.Summary(), "duration", rr.Duration())
	t.Sender.Send(&wire.Network{Data: rr})
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

func (t *Transport) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

// bodyRecorder keeps a bounded copy of everything read through it and
// reports it once, at EOF or Close.
type bodyRecorder struct {
	io.ReadCloser
	limit int
	done  func(body []byte)

	buf  bytes.Buffer
	once sync.Once
}

func (b *bodyRecorder) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if n > 0 {
		if room := b.limit + 1 - b.buf.Len(); room > 0 {
			b.buf.Write(p[:min(n, room)])
		}
	}
	if err == io.EOF {
		b.finish()
	}
	return n, err
}

func (b *bodyRecorder) Close() error {
	err := b.ReadCloser.Close()
	b.finish()
	return err
}

func (b *bodyRecorder) finish() {
	b.once.Do(func() {
		b.done(b.buf.Bytes())
	})
}

var _ http.RoundTripper = (*Transport)(nil)
