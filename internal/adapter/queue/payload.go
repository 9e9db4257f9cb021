package queue

import (
	"encoding/json"
	"fmt"

	"github.com/mehmetymw/failover-dispatch/internal/domain"
)

const DefaultTopic = "dispatch.requests"

type MessagePayload struct {
	Recipient string            `json:"recipient"`
	Subject   string            `json:"subject,omitempty"`
	Body      string            `json:"body"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type DispatchPayload struct {
	IdempotencyKey string            `json:"idempotency_key"`
	Message        MessagePayload    `json:"message"`
	Carrier        map[string]string `json:"carrier,omitempty"`
}

func encodePayload(key string, msg *domain.Message, carrier map[string]string) ([]byte, error) {
	return json.Marshal(DispatchPayload{
		IdempotencyKey: key,
		Message: MessagePayload{
			Recipient: msg.Recipient,
			Subject:   msg.Subject,
			Body:      msg.Body,
			Metadata:  msg.Metadata,
		},
		Carrier: carrier,
	})
}

func decodePayload(data []byte) (*DispatchPayload, *domain.Message, error) {
	var payload DispatchPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, nil, fmt.Errorf("unmarshal dispatch payload: %w", err)
	}

	msg, err := domain.NewMessage(payload.Message.Recipient, payload.Message.Subject, payload.Message.Body, payload.Message.Metadata)
	if err != nil {
		return &payload, nil, err
	}
	return &payload, msg, nil
}
