// Package transport carries gateway requests over a Content-Length framed
// byte stream or plain HTTP.
package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

const (
	// DefaultMaxFrameBytes bounds a single message body.
	DefaultMaxFrameBytes = 4 << 20
	maxHeaderLine        = 8 << 10
	maxHeaderLines       = 64
)

// FrameError is a per-message framing failure. The stream stays usable and
// the caller answers it with a JSON-RPC error.
type FrameError struct {
	Code    int
	Message string
}

func (e *FrameError) Error() string {
	return e.Message
}

var (
	errMissingLength = &FrameError{Code: -32600, Message: "Missing Content-Length header"}
	errFrameTooLarge = &FrameError{Code: -32600, Message: "Frame too large"}
)

type readState int

const (
	stateHeader readState = iota
	stateBody
)

// FrameReader splits a stream into Content-Length framed messages.
//
// It alternates between two states: stateHeader accumulates header lines
// until a blank line, stateBody reads exactly the announced byte count.
type FrameReader struct {
	r        *bufio.Reader
	maxBytes int64

	state   readState
	length  int64
	hasLen  bool
	lines   int
	started bool
}

func NewFrameReader(r io.Reader, maxBytes int64) *FrameReader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFrameBytes
	}
	return &FrameReader{r: bufio.NewReader(r), maxBytes: maxBytes}
}

func (f *FrameReader) reset() {
	f.state = stateHeader
	f.length = 0
	f.hasLen = false
	f.lines = 0
	f.started = false
}

// ReadFrame returns the next message body.
//
// io.EOF means the stream ended between messages. io.ErrUnexpectedEOF
// means it ended inside one. errFrameTooLarge leaves the stream at the next
// message, since the oversized body is discarded. errMissingLength does not:
// without a usable length the body is still unread and is taken as header
// text by the next call, so the following message is usually lost as well.
// Senders that omit Content-Length have no way to be resynchronised.
func (f *FrameReader) ReadFrame() ([]byte, error) {
	f.reset()
	for {
		switch f.state {
		case stateHeader:
			line, err := f.readLine()
			if err != nil {
				if errors.Is(err, io.EOF) {
					if f.started {
						return nil, io.ErrUnexpectedEOF
					}
					return nil, io.EOF
				}
				return nil, err
			}
			if line == "" {
				if !f.started {
					// Stray separator between messages.
					continue
				}
				if !f.hasLen {
					return nil, errMissingLength
				}
				f.state = stateBody
				continue
			}
			f.started = true
			f.lines++
			if f.lines > maxHeaderLines {
				return nil, errMissingLength
			}
			f.parseHeader(line)

		case stateBody:
			if f.length > f.maxBytes {
				if _, err := io.CopyN(io.Discard, f.r, f.length); err != nil {
					return nil, io.ErrUnexpectedEOF
				}
				return nil, errFrameTooLarge
			}
			body := make([]byte, f.length)
			if _, err := io.ReadFull(f.r, body); err != nil {
				return nil, io.ErrUnexpectedEOF
			}
			return body, nil
		}
	}
}

// parseHeader records Content-Length and ignores every other header.
func (f *FrameReader) parseHeader(line string) {
	name, value, ok := strings.Cut(line, ":")
	if !ok || !strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
		return
	}
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || n < 0 {
		f.hasLen = false
		return
	}
	f.length = n
	f.hasLen = true
}

// readLine reads one header line without its CRLF or LF terminator.
func (f *FrameReader) readLine() (string, error) {
	var sb strings.Builder
	for {
		chunk, isPrefix, err := f.r.ReadLine()
		if err != nil {
			if sb.Len() > 0 && errors.Is(err, io.EOF) {
				return "", io.ErrUnexpectedEOF
			}
			return "", err
		}
		if sb.Len()+len(chunk) > maxHeaderLine {
			for isPrefix && err == nil {
				_, isPrefix, err = f.r.ReadLine()
			}
			return "", errMissingLength
		}
		sb.Write(chunk)
		if !isPrefix {
			return strings.TrimRight(sb.String(), "\r"), nil
		}
	}
}

// FrameWriter writes Content-Length framed messages. It is safe for
// concurrent use.
type FrameWriter struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: bufio.NewWriter(w)}
}

func (f *FrameWriter) WriteFrame(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := fmt.Fprintf(f.w, "Content-Length: %d\r\n\r\n", len(payload)); err != nil {
		return err
	}
	if _, err := f.w.Write(payload); err != nil {
		return err
	}
	return f.w.Flush()
}
