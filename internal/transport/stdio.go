package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"financeangle/internal/gateway"
	"financeangle/internal/log"
)

// maxConsecutiveReadErrors stops the loop when the stream keeps failing
// without ever producing a frame.
const maxConsecutiveReadErrors = 5

// StdioServer answers framed requests read from in, one at a time.
type StdioServer struct {
	dispatcher *gateway.Dispatcher
	reader     *FrameReader
	writer     *FrameWriter
	logger     *log.Logger
}

func NewStdioServer(d *gateway.Dispatcher, in io.Reader, out io.Writer, maxFrameBytes int64, logger *log.Logger) *StdioServer {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &StdioServer{
		dispatcher: d,
		reader:     NewFrameReader(in, maxFrameBytes),
		writer:     NewFrameWriter(out),
		logger:     logger.WithComponent(log.ComponentTransport),
	}
}

// Serve loops until the input ends, ctx is cancelled or writing a response
// fails. A clean end of input returns nil.
func (s *StdioServer) Serve(ctx context.Context) error {
	s.logger.Info("Stdio transport ready")
	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		frame, err := s.reader.ReadFrame()
		if err != nil {
			var fe *FrameError
			switch {
			case errors.Is(err, io.EOF):
				s.logger.Info("Input closed, stopping stdio transport")
				return nil
			case errors.Is(err, io.ErrUnexpectedEOF):
				s.logger.Warn("Input closed in the middle of a message")
				return nil
			case errors.As(err, &fe):
				s.logger.Warn("Rejected frame", log.FieldError, fe.Message)
				if werr := s.write(gateway.NewError(nil, fe.Code, fe.Message)); werr != nil {
					return werr
				}
				failures = 0
				continue
			}
			failures++
			s.logger.Error("Failed to read frame", log.FieldError, err.Error(), "consecutive", failures)
			if failures >= maxConsecutiveReadErrors {
				return fmt.Errorf("read frame: %w", err)
			}
			continue
		}
		failures = 0

		resp := s.dispatcher.HandleRaw(ctx, frame)
		if err := s.write(resp); err != nil {
			return err
		}
	}
}

func (s *StdioServer) write(resp gateway.Response) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("Failed to encode response", log.FieldError, err.Error())
		payload, _ = json.Marshal(gateway.NewError(resp.ID, gateway.CodeServerError, "Failed to encode response"))
	}
	if err := s.writer.WriteFrame(payload); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
