package worker

import (
	"bytes"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/momentics/htcore/api"
	"github.com/momentics/htcore/conn"
	"github.com/momentics/htcore/internal/connctx"
	"github.com/momentics/htcore/message"
)

type nopIOControl struct{}

func (nopIOControl) SuspendInput()  {}
func (nopIOControl) RequestInput()  {}
func (nopIOControl) SuspendOutput() {}
func (nopIOControl) RequestOutput() {}

type sinkEncoder struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	complete bool
}

func (e *sinkEncoder) Encode(src []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buf.Write(src)
}

func (e *sinkEncoder) Complete() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.complete = true
	return nil
}

func newTestState() *conn.State {
	return conn.NewState(64, nopIOControl{}, connctx.NewContext())
}

func newGETRequest() *message.Request {
	req := message.NewRequest("GET", "/hello", message.HTTP11)
	req.Header.Set("Host", "example.test")
	return req
}

// pumpOutput drains state's output buffer into enc until stop fires,
// standing in for the reactor's outputReady dispatch.
func pumpOutput(state *conn.State, enc *sinkEncoder, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
			state.OutBuffer.ProduceContent(enc)
			time.Sleep(time.Millisecond)
		}
	}
}

func TestHandleRequest_SimpleHandlerEchoesBody(t *testing.T) {
	state := newTestState()
	var capturedHeader *message.Response
	state.SetHeaderWriter(func(r *message.Response) error {
		capturedHeader = r
		return nil
	})

	req := newGETRequest()
	state.SetRequest(req)

	resolver := staticResolver{h: api.HandlerFunc(func(req *message.Request, resp *message.Response, h api.ConnHandle) error {
		resp.SetEntity(message.NewBytesEntity([]byte("hello world"), "text/plain"))
		return nil
	})}

	enc := &sinkEncoder{}
	stop := make(chan struct{})
	go pumpOutput(state, enc, stop)

	HandleRequest(state, Deps{Resolver: resolver})
	close(stop)

	if capturedHeader == nil || capturedHeader.StatusCode != 200 {
		t.Fatalf("expected 200 response, got %+v", capturedHeader)
	}
	if got := enc.buf.String(); got != "hello world" {
		t.Fatalf("got body %q", got)
	}
	if !enc.complete {
		t.Fatal("expected encoder Complete to be called")
	}
}

func TestHandleRequest_NoRouteReturns501(t *testing.T) {
	state := newTestState()
	var captured *message.Response
	state.SetHeaderWriter(func(r *message.Response) error {
		captured = r
		return nil
	})
	state.SetRequest(newGETRequest())

	HandleRequest(state, Deps{})

	if captured == nil || captured.StatusCode != 501 {
		t.Fatalf("expected 501, got %+v", captured)
	}
}

func TestHandleRequest_HandlerErrorMapsTo500(t *testing.T) {
	state := newTestState()
	var captured *message.Response
	state.SetHeaderWriter(func(r *message.Response) error {
		captured = r
		return nil
	})
	state.SetRequest(newGETRequest())

	resolver := staticResolver{h: api.HandlerFunc(func(req *message.Request, resp *message.Response, h api.ConnHandle) error {
		return errBoom
	})}

	enc := &sinkEncoder{}
	stop := make(chan struct{})
	go pumpOutput(state, enc, stop)

	HandleRequest(state, Deps{Resolver: resolver})
	close(stop)

	if captured == nil || captured.StatusCode != 500 {
		t.Fatalf("expected 500, got %+v", captured)
	}
}

func TestHandleRequest_PostBodyReadableByHandler(t *testing.T) {
	state := newTestState()
	state.SetHeaderWriter(func(*message.Response) error { return nil })

	req := message.NewRequest("POST", "/echo", message.HTTP11)
	req.HasEntity = true
	req.Header.Set("Content-Length", "5")
	state.SetRequest(req)

	// Simulate the reactor decoding "abcde" into the input buffer
	// before the worker gets scheduled.
	state.InBuffer.ConsumeContent(&staticDecoder{data: []byte("abcde")})

	var readBack string
	resolver := staticResolver{h: api.HandlerFunc(func(req *message.Request, resp *message.Response, h api.ConnHandle) error {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return err
		}
		readBack = string(b)
		resp.SetEntity(message.NewBytesEntity(b, "text/plain"))
		return nil
	})}

	enc := &sinkEncoder{}
	stop := make(chan struct{})
	go pumpOutput(state, enc, stop)

	HandleRequest(state, Deps{Resolver: resolver})
	close(stop)

	if readBack != "abcde" {
		t.Fatalf("handler read %q", readBack)
	}
	if got := enc.buf.String(); got != "abcde" {
		t.Fatalf("echoed body %q", got)
	}
}

// funcVerifier adapts a plain function to api.ExpectationVerifier.
type funcVerifier func(*message.Request, api.Context) (*message.Response, error)

func (f funcVerifier) Verify(req *message.Request, ctx api.Context) (*message.Response, error) {
	return f(req, ctx)
}

func newContinueRequest(contentLength string) *message.Request {
	req := message.NewRequest("POST", "/upload", message.HTTP11)
	req.HasEntity = true
	req.Header.Set("Content-Length", contentLength)
	req.Header.Set("Expect", "100-continue")
	return req
}

func TestHandleRequest_ExpectContinueAccepted(t *testing.T) {
	state := newTestState()
	var headers []*message.Response
	var mu sync.Mutex
	state.SetHeaderWriter(func(r *message.Response) error {
		mu.Lock()
		headers = append(headers, r)
		mu.Unlock()
		return nil
	})

	req := newContinueRequest("5")
	state.SetRequest(req)

	resolver := staticResolver{h: api.HandlerFunc(func(req *message.Request, resp *message.Response, h api.ConnHandle) error {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return err
		}
		resp.SetEntity(message.NewBytesEntity(b, "text/plain"))
		return nil
	})}

	enc := &sinkEncoder{}
	stop := make(chan struct{})
	go pumpOutput(state, enc, stop)

	// Simulate the reactor handing off the body bytes after the
	// interim 100 response has already been requested.
	go func() {
		for {
			mu.Lock()
			ready := state.OutputState() == conn.OutputReady && len(headers) > 0
			mu.Unlock()
			if ready {
				state.InBuffer.ConsumeContent(&staticDecoder{data: []byte("abcde")})
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	HandleRequest(state, Deps{
		Resolver:            resolver,
		ExpectationVerifier: funcVerifier(func(*message.Request, api.Context) (*message.Response, error) { return nil, nil }),
	})
	close(stop)

	mu.Lock()
	defer mu.Unlock()
	if len(headers) != 2 {
		t.Fatalf("expected interim + final response, got %d headers", len(headers))
	}
	if headers[0].StatusCode != 100 {
		t.Fatalf("expected first response 100 Continue, got %d", headers[0].StatusCode)
	}
	if headers[1].StatusCode != 200 {
		t.Fatalf("expected final response 200, got %d", headers[1].StatusCode)
	}
	if got := enc.buf.String(); got != "abcde" {
		t.Fatalf("echoed body %q", got)
	}
}

func TestHandleRequest_ExpectContinueRejected(t *testing.T) {
	state := newTestState()
	var captured *message.Response
	state.SetHeaderWriter(func(r *message.Response) error {
		captured = r
		return nil
	})
	state.SetRequest(newContinueRequest("5"))

	enc := &sinkEncoder{}
	stop := make(chan struct{})
	go pumpOutput(state, enc, stop)

	HandleRequest(state, Deps{
		ExpectationVerifier: funcVerifier(func(*message.Request, api.Context) (*message.Response, error) {
			return nil, &api.ProtocolException{Message: "bad", Kind: api.ProtocolMalformed}
		}),
	})
	close(stop)

	if captured == nil {
		t.Fatal("expected a response to be staged")
	}
	if captured.Proto != message.HTTP10 || captured.StatusCode != 400 {
		t.Fatalf("expected HTTP/1.0 400, got %s %d", captured.Proto, captured.StatusCode)
	}
	entity := captured.Entity()
	if entity == nil {
		t.Fatal("expected an error body")
	}
	if entity.ContentType() != "text/plain; charset=US-ASCII" {
		t.Fatalf("unexpected content type %q", entity.ContentType())
	}
	var buf bytes.Buffer
	if err := entity.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if buf.String() != "bad" {
		t.Fatalf("expected bare body %q, got %q", "bad", buf.String())
	}
}

func TestHandleRequest_StreamingResponseLargerThanBuffer(t *testing.T) {
	state := conn.NewState(16, nopIOControl{}, connctx.NewContext())
	state.SetHeaderWriter(func(*message.Response) error { return nil })
	state.SetRequest(newGETRequest())

	body := bytes.Repeat([]byte("0123456789"), 20) // 200 bytes, well over the 16-byte buffer
	resolver := staticResolver{h: api.HandlerFunc(func(req *message.Request, resp *message.Response, h api.ConnHandle) error {
		resp.SetEntity(message.NewBytesEntity(body, "application/octet-stream"))
		return nil
	})}

	enc := &sinkEncoder{}
	stop := make(chan struct{})
	go pumpOutput(state, enc, stop)

	HandleRequest(state, Deps{Resolver: resolver})
	close(stop)

	if !bytes.Equal(enc.buf.Bytes(), body) {
		t.Fatalf("streamed %d bytes, want %d", enc.buf.Len(), len(body))
	}
	if !enc.complete {
		t.Fatal("expected encoder Complete to be called")
	}
}

func TestHandleRequest_ClientDisconnectMidResponse(t *testing.T) {
	state := conn.NewState(8, nopIOControl{}, connctx.NewContext())
	state.SetHeaderWriter(func(*message.Response) error { return nil })
	state.SetRequest(newGETRequest())

	body := bytes.Repeat([]byte("x"), 64)
	resolver := staticResolver{h: api.HandlerFunc(func(req *message.Request, resp *message.Response, h api.ConnHandle) error {
		resp.SetEntity(message.NewBytesEntity(body, "application/octet-stream"))
		return nil
	})}

	var listener fatalTrackingListener
	done := make(chan struct{})
	go func() {
		HandleRequest(state, Deps{Resolver: resolver, Listener: &listener})
		close(done)
	}()

	// Drain a couple of chunks, then simulate the client vanishing
	// before the whole body has been produced.
	enc := &sinkEncoder{}
	for i := 0; i < 2; i++ {
		state.OutBuffer.ProduceContent(enc)
		time.Sleep(time.Millisecond)
	}
	state.Shutdown()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("HandleRequest did not return after client disconnect")
	}
}

type fatalTrackingListener struct {
	mu                sync.Mutex
	ioErrs, protoErrs int
}

func (l *fatalTrackingListener) ConnectionOpened(api.Context) {}
func (l *fatalTrackingListener) ConnectionClosed(api.Context) {}
func (l *fatalTrackingListener) FatalIOException(api.Context, error) {
	l.mu.Lock()
	l.ioErrs++
	l.mu.Unlock()
}
func (l *fatalTrackingListener) FatalProtocolException(api.Context, error) {
	l.mu.Lock()
	l.protoErrs++
	l.mu.Unlock()
}

type staticResolver struct{ h api.Handler }

func (r staticResolver) Resolve(*message.Request) (api.Handler, bool) { return r.h, true }

type staticDecoder struct {
	data []byte
	sent bool
}

func (d *staticDecoder) Decode(dst []byte) (int, bool, error) {
	if d.sent {
		return 0, true, nil
	}
	n := copy(dst, d.data)
	d.sent = n == len(d.data)
	return n, d.sent, nil
}

var errBoom = errTest("boom")

type errTest string

func (e errTest) Error() string { return string(e) }
