package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/Aman-CERP/linesearch/internal/engine"
	lserrors "github.com/Aman-CERP/linesearch/internal/errors"
	"github.com/Aman-CERP/linesearch/internal/logstore"
)

const readChunk = 4096

// handle serves one connection: read, decode, dispatch, reply, close.
// Every path writes at most one reply and the connection always closes.
func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	ip := engine.RequesterIP(conn.RemoteAddr().String())
	var query string

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("connection handler panicked",
				slog.String("requesting_ip", ip),
				slog.Any("panic", r))
			s.send(conn, FormatError("Internal server error", query, ip), ip)
		}
	}()

	frame, err := s.readFrame(conn)
	if err != nil {
		s.logger.Warn("request rejected",
			slog.String("requesting_ip", ip),
			slog.String("code", lserrors.GetCode(err)),
			slog.String("error", err.Error()))
		if lserrors.GetCode(err) == lserrors.ErrCodePayloadTooLarge {
			s.drain(conn)
			s.send(conn, FormatError(lserrors.Message(err), "", ip), ip)
		}
		return
	}

	msg, err := DecodeMessage(frame)
	query = msg.QueryOr("")
	if err != nil {
		s.logger.Warn("request rejected",
			slog.String("requesting_ip", ip),
			slog.String("code", lserrors.GetCode(err)),
			slog.String("error", err.Error()))
		s.send(conn, FormatError(lserrors.Message(err), query, ip), ip)
		return
	}

	s.send(conn, s.dispatch(ctx, conn.RemoteAddr().String(), msg), ip)
}

func (s *Server) dispatch(ctx context.Context, addr string, msg Message) string {
	switch *msg.Action {
	case ActionReadLogs:
		entries, err := s.engine.ReadLogs(ctx)
		if err != nil {
			s.logger.Error("read logs failed", slog.String("error", err.Error()))
			return FormatError(lserrors.Message(err), "", engine.RequesterIP(addr))
		}
		return encodeEntries(entries)
	default:
		res := s.engine.Execute(ctx, engine.Request{
			Addr:  addr,
			Query: *msg.Query,
			Mode:  *msg.Algo,
		})
		return FormatResult(res)
	}
}

// send applies the outbound guard before writing the reply.
func (s *Server) send(conn net.Conn, reply string, ip string) {
	if err := s.guard.Check([]byte(reply)); err != nil {
		s.logger.Warn("reply rejected",
			slog.String("requesting_ip", ip),
			slog.Int("size", len(reply)),
			slog.String("code", lserrors.ErrCodePayloadTooLarge))
		reply = FormatError(lserrors.Message(err), "", ip)
	}

	if _, err := conn.Write([]byte(reply)); err != nil {
		s.logger.Warn("reply write failed",
			slog.String("requesting_ip", ip),
			slog.String("error", err.Error()))
		return
	}
	s.logger.Debug("reply sent", slog.String("requesting_ip", ip), slog.String("reply", reply))
}

// readFrame reads one request. The first read waits indefinitely. If what
// arrived is not yet a complete JSON value, more is read within the frame
// grace window. Input beyond the maximum is never buffered.
func (s *Server) readFrame(conn net.Conn) ([]byte, error) {
	limit := s.guard.Max()
	buf := make([]byte, 0, min(limit+1, readChunk))
	chunk := make([]byte, readChunk)
	grace := s.grace()

	for {
		n, err := conn.Read(chunk[:min(readChunk, limit+1-len(buf))])
		buf = append(buf, chunk[:n]...)
		if gerr := s.guard.Check(buf); gerr != nil {
			return nil, gerr
		}
		if err != nil {
			var nerr net.Error
			if errors.Is(err, io.EOF) || (errors.As(err, &nerr) && nerr.Timeout()) {
				return buf, nil
			}
			return nil, lserrors.IOError("connection read failed", err)
		}
		if json.Valid(buf) {
			return buf, nil
		}
		if err := conn.SetReadDeadline(time.Now().Add(grace)); err != nil {
			return buf, nil
		}
	}
}

func (s *Server) grace() time.Duration {
	if s.settings.FrameGrace > 0 {
		return s.settings.FrameGrace
	}
	return DefaultFrameGrace
}

func encodeEntries(entries []logstore.Entry) string {
	if entries == nil {
		entries = []logstore.Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return FormatError("Failed to encode logs", "", "")
	}
	return string(data)
}
