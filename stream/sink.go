package stream

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"sync"
)

// Sink receives compressed change batches.
type Sink interface {
	Deliver(ctx context.Context, batch []byte) error
}

// WriterSink writes each batch to w as one line of standard base64.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a sink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Deliver implements Sink.
func (s *WriterSink) Deliver(ctx context.Context, batch []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line := base64.StdEncoding.EncodeToString(batch) + "\n"
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.w, line); err != nil {
		return fmt.Errorf("write batch: %w", err)
	}
	return nil
}
