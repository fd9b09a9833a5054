// Package feed is the collaborator ingress for the escalation engine.
// The emotion-sensing and conversation collaborators connect over a unix
// domain socket and push line-delimited JSON messages; offline collaborators
// can instead drop message files into a watched spool directory. The feed
// performs no risk logic of its own: it validates, decodes, and hands
// samples to the engine.
package feed

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType discriminates feed messages.
type MessageType string

// Message type constants.
const (
	MsgOpen     MessageType = "OPEN"
	MsgText     MessageType = "TEXT"
	MsgEmotion  MessageType = "EMOTION"
	MsgFeedback MessageType = "FEEDBACK"
	MsgResolve  MessageType = "RESOLVE"
	MsgClose    MessageType = "CLOSE"
	MsgAck      MessageType = "ACK"
	MsgErr      MessageType = "ERR"
)

// Message is one line-delimited JSON frame on the feed socket. Exactly one
// payload pointer matching Type is set.
type Message struct {
	Type     MessageType      `json:"type"`
	Open     *OpenPayload     `json:"open,omitempty"`
	Text     *TextPayload     `json:"text,omitempty"`
	Emotion  *EmotionPayload  `json:"emotion,omitempty"`
	Feedback *FeedbackPayload `json:"feedback,omitempty"`
	Resolve  *ResolvePayload  `json:"resolve,omitempty"`
	Close    *ClosePayload    `json:"close,omitempty"`
	Ack      *AckPayload      `json:"ack,omitempty"`
}

// OpenPayload starts a session. SessionID may be empty; the engine mints one.
type OpenPayload struct {
	SessionID string `json:"session_id,omitempty"`
}

// TextPayload carries one user message with its externally computed
// sentiment and optional advisory risk factors from the conversation
// collaborator.
type TextPayload struct {
	SessionID  string    `json:"session_id"`
	Timestamp  time.Time `json:"timestamp"`
	Text       string    `json:"text"`
	Sentiment  float64   `json:"sentiment_score"`
	Advisories []string  `json:"advisories,omitempty"`
}

// EmotionPayload carries one emotion classifier sample.
type EmotionPayload struct {
	SessionID    string    `json:"session_id"`
	Timestamp    time.Time `json:"timestamp"`
	Emotion      string    `json:"emotion"`
	Confidence   float64   `json:"confidence"`
	FaceDetected bool      `json:"face_detected"`
}

// FeedbackPayload fills an intervention's one-shot feedback fields.
type FeedbackPayload struct {
	InterventionID int64  `json:"intervention_id"`
	UserResponse   string `json:"user_response"`
	Effectiveness  int    `json:"effectiveness_score"`
}

// ResolvePayload is the human-acknowledged release of sticky level 5.
type ResolvePayload struct {
	SessionID string `json:"session_id"`
}

// ClosePayload archives a session.
type ClosePayload struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status,omitempty"` // completed (default) or aborted
}

// AckPayload is the engine's reply frame.
type AckPayload struct {
	SessionID string `json:"session_id,omitempty"`
	Level     int    `json:"level,omitempty"`
	Score     int    `json:"score,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Validate checks that the payload matching Type is present.
func (m Message) Validate() error {
	switch m.Type {
	case MsgOpen:
		if m.Open == nil {
			return fmt.Errorf("OPEN message missing payload")
		}
	case MsgText:
		if m.Text == nil || m.Text.SessionID == "" {
			return fmt.Errorf("TEXT message missing payload or session_id")
		}
	case MsgEmotion:
		if m.Emotion == nil || m.Emotion.SessionID == "" {
			return fmt.Errorf("EMOTION message missing payload or session_id")
		}
	case MsgFeedback:
		if m.Feedback == nil || m.Feedback.InterventionID == 0 {
			return fmt.Errorf("FEEDBACK message missing payload or intervention_id")
		}
	case MsgResolve:
		if m.Resolve == nil || m.Resolve.SessionID == "" {
			return fmt.Errorf("RESOLVE message missing payload or session_id")
		}
	case MsgClose:
		if m.Close == nil || m.Close.SessionID == "" {
			return fmt.Errorf("CLOSE message missing payload or session_id")
		}
	case MsgAck, MsgErr:
		// reply frames, not validated on ingest
	default:
		return fmt.Errorf("unknown message type %q", m.Type)
	}
	return nil
}

// Decode parses one JSON frame.
func Decode(line []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(line, &m); err != nil {
		return Message{}, fmt.Errorf("decode feed message: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}
