package boltconn

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

const maxChunkSize = 0xFFFF

// chunkWriter splits one logical message into length-prefixed chunks
// terminated by the empty chunk (spec.md §6). It buffers the whole message
// before chunking so a single WriteMessage call is one syscall-friendly
// write.
type chunkWriter struct {
	w   io.Writer
	buf []byte
}

func newChunkWriter(w io.Writer) *chunkWriter {
	return &chunkWriter{w: w}
}

// WriteMessage chunks and flushes a complete message body.
func (c *chunkWriter) WriteMessage(body []byte) error {
	out := make([]byte, 0, len(body)+4)
	for len(body) > 0 {
		n := len(body)
		if n > maxChunkSize {
			n = maxChunkSize
		}
		var header [2]byte
		binary.BigEndian.PutUint16(header[:], uint16(n))
		out = append(out, header[:]...)
		out = append(out, body[:n]...)
		body = body[n:]
	}
	out = append(out, 0, 0) // end-of-message marker
	_, err := c.w.Write(out)
	if err != nil {
		return fmt.Errorf("boltconn: chunk write: %w", err)
	}
	return nil
}

// chunkReader reassembles chunks back into complete message bodies.
type chunkReader struct {
	r *bufio.Reader
}

func newChunkReader(r io.Reader) *chunkReader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, 4096)
	}
	return &chunkReader{r: br}
}

// ReadMessage reads chunks until the terminating empty chunk and returns
// the reassembled message body.
func (c *chunkReader) ReadMessage() ([]byte, error) {
	var msg []byte
	for {
		var header [2]byte
		if _, err := io.ReadFull(c.r, header[:]); err != nil {
			return nil, fmt.Errorf("boltconn: chunk header read: %w", err)
		}
		size := binary.BigEndian.Uint16(header[:])
		if size == 0 {
			if msg == nil {
				return nil, fmt.Errorf("boltconn: empty message (no chunks before terminator)")
			}
			return msg, nil
		}
		chunk := make([]byte, size)
		if _, err := io.ReadFull(c.r, chunk); err != nil {
			return nil, fmt.Errorf("boltconn: chunk body read: %w", err)
		}
		msg = append(msg, chunk...)
	}
}
