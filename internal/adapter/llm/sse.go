package llm

import (
	"bytes"
	"context"
	"io"

	"github.com/storechat/admin-agent/internal/domain"
)

// sseBuffer reassembles server-sent event frames from arbitrarily split
// chunks. A frame is terminated by a blank line; partial frames stay
// buffered until a later chunk completes them.
type sseBuffer struct {
	buf bytes.Buffer
}

// Feed appends a chunk and returns the data payload of every frame
// completed so far, in arrival order. Frames without a data line
// (comments, bare event lines) produce nothing.
func (b *sseBuffer) Feed(chunk []byte) [][]byte {
	b.buf.Write(chunk)

	var out [][]byte
	for {
		raw := b.buf.Bytes()
		i := bytes.Index(raw, []byte("\n\n"))
		if i < 0 {
			break
		}
		frame := make([]byte, i)
		copy(frame, raw[:i])
		b.buf.Next(i + 2)

		if data := frameData(frame); data != nil {
			out = append(out, data)
		}
	}
	return out
}

// frameData extracts and joins the "data:" lines of one frame.
// Returns nil when the frame carries no data lines.
func frameData(frame []byte) []byte {
	var data []byte
	for _, line := range bytes.Split(frame, []byte("\n")) {
		line = bytes.TrimSuffix(line, []byte("\r"))
		if len(line) == 0 || line[0] == ':' {
			continue
		}
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		payload := bytes.TrimPrefix(line, []byte("data:"))
		payload = bytes.TrimPrefix(payload, []byte(" "))
		if data != nil {
			data = append(data, '\n')
		}
		data = append(data, payload...)
	}
	return data
}

// parseSSEStream reads the response body chunk by chunk, reassembles SSE
// frames, and decodes each data payload with decodeFrame. A payload that
// fails to decode produces a stream_error event and the stream continues.
// The channel closes when decodeFrame signals the end of the turn, the
// body is exhausted, or ctx is cancelled.
func parseSSEStream(ctx context.Context, body io.ReadCloser, decodeFrame func(data []byte) (*domain.StreamEvent, bool, error)) <-chan domain.StreamEvent {
	ch := make(chan domain.StreamEvent, 16)
	go func() {
		defer close(ch)
		defer body.Close()

		var sse sseBuffer
		chunk := make([]byte, 4096)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			n, readErr := body.Read(chunk)
			for _, data := range sse.Feed(chunk[:n]) {
				// Generic termination sentinel some gateways append.
				if bytes.Equal(data, []byte("[DONE]")) {
					continue
				}

				evt, done, err := decodeFrame(data)
				if err != nil {
					evt = &domain.StreamEvent{
						Type:    domain.EventStreamError,
						Message: err.Error(),
					}
					done = false
				}
				if evt != nil {
					select {
					case ch <- *evt:
					case <-ctx.Done():
						return
					}
				}
				if done {
					return
				}
			}

			if readErr != nil {
				if readErr != io.EOF {
					select {
					case ch <- domain.StreamEvent{Type: domain.EventStreamError, Message: readErr.Error()}:
					case <-ctx.Done():
					}
				}
				return
			}
		}
	}()
	return ch
}
