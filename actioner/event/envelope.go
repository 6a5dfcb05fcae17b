package event

import (
	"encoding/json"
	"fmt"
)

// A single inbound notification record, as received from the inbound queue.
type Envelope struct {
	// queue-assigned identifier (eg, redis stream entry ID); used for logging and acknowledgement
	ID   string
	Body []byte
}

// notification wrapper: the match message is JSON-encoded as a string inside the "Message" field
type wrappedNotification struct {
	Message *string `json:"Message"`
}

// Parses an envelope body in to a MatchMessage.
//
// Accepts either a notification wrapper (`{"Message": "<json>"}`), or a bare match message JSON object.
func ParseEnvelope(env Envelope) (*MatchMessage, error) {
	if len(env.Body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidEnvelope)
	}
	var wrapper wrappedNotification
	if err := json.Unmarshal(env.Body, &wrapper); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}
	raw := env.Body
	if wrapper.Message != nil {
		raw = []byte(*wrapper.Message)
	}

	var msg MatchMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Batch invocation payload, in the shape of a queue-triggered function invocation: `{"Records": [{"messageId": ..., "body": ...}]}`
type BatchInvocation struct {
	Records []struct {
		MessageID string `json:"messageId"`
		Body      string `json:"body"`
	} `json:"Records"`
}

func (b *BatchInvocation) Envelopes() []Envelope {
	out := make([]Envelope, 0, len(b.Records))
	for i, rec := range b.Records {
		id := rec.MessageID
		if id == "" {
			id = fmt.Sprintf("record-%d", i)
		}
		out = append(out, Envelope{ID: id, Body: []byte(rec.Body)})
	}
	return out
}
