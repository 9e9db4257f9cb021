package http

import (
	"time"

	"github.com/mehmetymw/failover-dispatch/internal/app"
	"github.com/mehmetymw/failover-dispatch/internal/domain"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type CreateDispatchRequest struct {
	IdempotencyKey string            `json:"idempotency_key"`
	Recipient      string            `json:"recipient" binding:"required"`
	Subject        string            `json:"subject"`
	Body           string            `json:"body" binding:"required"`
	Metadata       map[string]string `json:"metadata"`
}

func (r CreateDispatchRequest) ToMessage() (*domain.Message, error) {
	return domain.NewMessage(r.Recipient, r.Subject, r.Body, r.Metadata)
}

type CreateBatchDispatchRequest struct {
	Dispatches  []CreateDispatchRequest `json:"dispatches" binding:"required,min=1,max=1000,dive"`
	Concurrency int                     `json:"concurrency"`
}

type AttemptResponse struct {
	ID                string    `json:"id"`
	Round             int       `json:"round"`
	Provider          string    `json:"provider"`
	Succeeded         bool      `json:"succeeded"`
	Error             *string   `json:"error,omitempty"`
	ProviderMessageID *string   `json:"provider_message_id,omitempty"`
	LatencyMs         int64     `json:"latency_ms"`
	CreatedAt         time.Time `json:"created_at"`
}

type DispatchResponse struct {
	IdempotencyKey string            `json:"idempotency_key"`
	Status         string            `json:"status"`
	Provider       string            `json:"provider,omitempty"`
	Duplicate      bool              `json:"duplicate"`
	Attempts       []AttemptResponse `json:"attempts"`
	Error          string            `json:"error,omitempty"`
}

type StatusResponse struct {
	IdempotencyKey string `json:"idempotency_key"`
	Status         string `json:"status"`
}

type BatchDispatchResponse struct {
	Results []DispatchResponse `json:"results"`
}

func NewAttemptResponse(a *domain.Attempt) AttemptResponse {
	return AttemptResponse{
		ID:                a.ID.String(),
		Round:             a.Round,
		Provider:          a.Provider,
		Succeeded:         a.Succeeded,
		Error:             a.Error,
		ProviderMessageID: a.ProviderMessageID,
		LatencyMs:         a.Latency.Milliseconds(),
		CreatedAt:         a.CreatedAt,
	}
}

func NewAttemptResponses(attempts []*domain.Attempt) []AttemptResponse {
	resp := make([]AttemptResponse, len(attempts))
	for i, a := range attempts {
		resp[i] = NewAttemptResponse(a)
	}
	return resp
}

func NewDispatchResponse(r *domain.DispatchResult) DispatchResponse {
	return DispatchResponse{
		IdempotencyKey: r.IdempotencyKey,
		Status:         r.Status.String(),
		Provider:       r.Provider,
		Duplicate:      r.Duplicate,
		Attempts:       NewAttemptResponses(r.Attempts),
	}
}

func NewBatchDispatchResponse(reqs []app.DispatchRequest, items []app.BatchItemResult) BatchDispatchResponse {
	results := make([]DispatchResponse, len(items))
	for i, item := range items {
		if item.Result != nil {
			results[i] = NewDispatchResponse(item.Result)
		} else {
			results[i] = DispatchResponse{
				IdempotencyKey: reqs[i].IdempotencyKey,
				Status:         domain.StatusUnknown.String(),
				Attempts:       []AttemptResponse{},
			}
		}
		if item.Err != nil {
			results[i].Error = item.Err.Error()
		}
	}
	return BatchDispatchResponse{Results: results}
}
