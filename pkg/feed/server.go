package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"vigil/pkg/engine"
	"vigil/pkg/escalation"
	"vigil/pkg/risk"
)

// Server accepts collaborator connections on a unix domain socket and feeds
// decoded samples to the engine. Each connection is served by its own
// goroutine; per-session serialization is the engine's job, not the feed's.
type Server struct {
	engine *engine.Engine
	log    *slog.Logger

	mu       sync.Mutex
	listener net.Listener

	// sleepFunc allows tests to skip the accept-failure backoff.
	sleepFunc func(time.Duration)
}

// acceptBackoff throttles the accept loop after a transient failure such as
// a file-descriptor exhaustion, so the loop does not spin hot.
const acceptBackoff = 100 * time.Millisecond

// NewServer creates a Server.
func NewServer(eng *engine.Engine, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{engine: eng, log: log, sleepFunc: time.Sleep}
}

// Run listens on socketPath and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, socketPath string) error {
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen unix %s: %w", socketPath, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	return s.serve(ctx, ln)
}

// serve accepts connections until ctx is cancelled or the listener closes.
func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warn("accept failed", "error", err)
			s.sleepFunc(acceptBackoff)
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

// handleConn reads line-delimited JSON messages from one collaborator and
// writes an ACK or ERR frame per message.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		msg, err := Decode(scanner.Bytes())
		if err != nil {
			// Malformed input is dropped and logged, never fatal.
			s.log.Warn("dropped malformed feed message", "error", err)
			_ = enc.Encode(Message{Type: MsgErr, Ack: &AckPayload{Error: err.Error()}})
			continue
		}
		_ = enc.Encode(s.Handle(ctx, msg))
	}
}

// Handle applies one decoded message to the engine and builds the reply
// frame. Exported so the spool ingester and tests share the exact routing.
func (s *Server) Handle(ctx context.Context, msg Message) Message {
	switch msg.Type {
	case MsgOpen:
		id, err := s.engine.OpenSession(ctx, msg.Open.SessionID)
		if err != nil {
			return errFrame(msg.Open.SessionID, err)
		}
		return ackFrame(id, 0, 0)

	case MsgText:
		a, _, err := s.engine.SubmitText(ctx, msg.Text.SessionID, msg.Text.Timestamp,
			msg.Text.Text, msg.Text.Sentiment, msg.Text.Advisories)
		if err != nil {
			return errFrame(msg.Text.SessionID, err)
		}
		return ackFrame(msg.Text.SessionID, a.EscalationLevelAfter, a.Score)

	case MsgEmotion:
		a, _, err := s.engine.SubmitEmotion(ctx, risk.EmotionSample{
			SessionID:    msg.Emotion.SessionID,
			Timestamp:    msg.Emotion.Timestamp,
			Emotion:      msg.Emotion.Emotion,
			Confidence:   msg.Emotion.Confidence,
			FaceDetected: msg.Emotion.FaceDetected,
		})
		if err != nil {
			return errFrame(msg.Emotion.SessionID, err)
		}
		return ackFrame(msg.Emotion.SessionID, a.EscalationLevelAfter, a.Score)

	case MsgFeedback:
		if err := s.engine.Feedback(ctx, msg.Feedback.InterventionID,
			msg.Feedback.UserResponse, msg.Feedback.Effectiveness, nil); err != nil {
			return errFrame("", err)
		}
		return ackFrame("", 0, 0)

	case MsgResolve:
		decision, err := s.engine.Resolve(ctx, msg.Resolve.SessionID)
		if err != nil {
			return errFrame(msg.Resolve.SessionID, err)
		}
		return ackFrame(msg.Resolve.SessionID, int(decision.To), 0)

	case MsgClose:
		status := escalation.SessionCompleted
		if msg.Close.Status == string(escalation.SessionAborted) {
			status = escalation.SessionAborted
		}
		if err := s.engine.CloseSession(ctx, msg.Close.SessionID, status); err != nil {
			return errFrame(msg.Close.SessionID, err)
		}
		return ackFrame(msg.Close.SessionID, 0, 0)

	default:
		return errFrame("", errors.New("unhandled message type"))
	}
}

func ackFrame(sessionID string, level, score int) Message {
	return Message{Type: MsgAck, Ack: &AckPayload{SessionID: sessionID, Level: level, Score: score}}
}

func errFrame(sessionID string, err error) Message {
	return Message{Type: MsgErr, Ack: &AckPayload{SessionID: sessionID, Error: err.Error()}}
}
