package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mehmetymw/failover-dispatch/internal/domain"
	"github.com/mehmetymw/failover-dispatch/internal/port"
	"github.com/mehmetymw/failover-dispatch/pkg/logger"
	"github.com/mehmetymw/failover-dispatch/pkg/tracing"
)

const defaultWebhookTimeout = 5 * time.Second

type WebhookProvider struct {
	name       string
	webhookURL string
	httpClient *http.Client
}

func NewWebhookProvider(name, webhookURL string, timeout time.Duration) *WebhookProvider {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}

	return &WebhookProvider{
		name:       name,
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type webhookRequest struct {
	To       string            `json:"to"`
	Subject  string            `json:"subject,omitempty"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type webhookResponse struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func (p *WebhookProvider) Name() string { return p.name }

func (p *WebhookProvider) Send(ctx context.Context, msg *domain.Message) (*port.ProviderResponse, error) {
	ctx, span := tracing.Tracer().Start(ctx, "webhook.send")
	defer span.End()

	span.SetAttributes(
		attribute.String("webhook.url", p.webhookURL),
		attribute.String("provider.name", p.name),
		attribute.String("message.recipient", msg.Recipient),
	)

	body, err := json.Marshal(webhookRequest{
		To:       msg.Recipient,
		Subject:  msg.Subject,
		Content:  msg.Body,
		Metadata: msg.Metadata,
	})
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.webhookURL, bytes.NewReader(body))
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	correlationID := logger.CorrelationIDFromContext(ctx)
	if correlationID != "" {
		req.Header.Set("X-Correlation-ID", correlationID)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrProviderUnavailable, p.name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("%w: %s: read body: %v", domain.ErrProviderUnavailable, p.name, err)
	}

	if isTransientError(resp.StatusCode) {
		transientErr := fmt.Errorf("%w: %s: status %d", domain.ErrProviderUnavailable, p.name, resp.StatusCode)
		tracing.RecordError(span, transientErr)
		return nil, transientErr
	}

	if resp.StatusCode >= 400 {
		permErr := fmt.Errorf("%w: %s: status %d, body: %s", domain.ErrProviderRejected, p.name, resp.StatusCode, string(respBody))
		tracing.RecordError(span, permErr)
		return nil, permErr
	}

	var webhookResp webhookResponse
	if err := json.Unmarshal(respBody, &webhookResp); err != nil || webhookResp.MessageID == "" {
		webhookResp = webhookResponse{
			MessageID: uuid.New().String(),
			Status:    "accepted",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
	}

	span.SetAttributes(attribute.String("webhook.message_id", webhookResp.MessageID))

	return &port.ProviderResponse{
		MessageID: webhookResp.MessageID,
		Status:    webhookResp.Status,
		Timestamp: webhookResp.Timestamp,
	}, nil
}

func isTransientError(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
