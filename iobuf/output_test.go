package iobuf

import (
	"bytes"
	"testing"
)

// sinkEncoder accepts everything handed to it immediately, recording
// the bytes and whether Complete was called.
type sinkEncoder struct {
	buf      bytes.Buffer
	complete bool
}

func (e *sinkEncoder) Encode(src []byte) (int, error) {
	return e.buf.Write(src)
}

func (e *sinkEncoder) Complete() error {
	e.complete = true
	return nil
}

func TestSharedOutputBuffer_WriteThenProduce(t *testing.T) {
	ctl := &countingIOControl{}
	b := NewSharedOutputBuffer(1024, ctl, nil)

	if _, err := b.Write([]byte("response body")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	b.WriteCompleted()

	enc := &sinkEncoder{}
	n, completed, err := b.ProduceContent(enc)
	if err != nil {
		t.Fatalf("ProduceContent: %v", err)
	}
	if n != len("response body") {
		t.Fatalf("n=%d", n)
	}
	if !completed {
		t.Fatal("expected completed=true")
	}
	if !enc.complete {
		t.Fatal("expected Encoder.Complete to be called")
	}
	if got := enc.buf.String(); got != "response body" {
		t.Fatalf("got %q", got)
	}
}

func TestSharedOutputBuffer_BlocksWhenFullUntilDrained(t *testing.T) {
	ctl := &countingIOControl{}
	b := NewSharedOutputBuffer(4, ctl, nil)

	wrote := make(chan struct{})
	go func() {
		// Larger than capacity: must block partway through.
		if _, err := b.Write([]byte("abcdefgh")); err != nil {
			t.Errorf("Write: %v", err)
		}
		close(wrote)
	}()

	// Drain repeatedly until the writer completes.
	enc := &sinkEncoder{}
	for {
		select {
		case <-wrote:
			b.WriteCompleted()
			if _, _, err := b.ProduceContent(enc); err != nil {
				t.Fatalf("ProduceContent: %v", err)
			}
			if got := enc.buf.String(); got != "abcdefgh" {
				t.Fatalf("got %q", got)
			}
			return
		default:
			if _, _, err := b.ProduceContent(enc); err != nil {
				t.Fatalf("ProduceContent: %v", err)
			}
		}
	}
}

func TestSharedOutputBuffer_ShutdownInterruptsBlockedWrite(t *testing.T) {
	ctl := &countingIOControl{}
	b := NewSharedOutputBuffer(2, ctl, nil)

	if _, err := b.Write([]byte("ab")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := b.Write([]byte("more"))
		done <- err
	}()

	b.Shutdown()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected interruption error")
		}
	case <-timeoutC():
		t.Fatal("Write did not unblock after Shutdown")
	}
}
