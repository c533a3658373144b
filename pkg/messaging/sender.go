package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jdmarin/boxvalet-backend/pkg/config"
	pkgerrors "github.com/jdmarin/boxvalet-backend/pkg/errors"
)

const (
	defaultSendTimeout       = 5 * time.Second
	responseBodyLimit  int64 = 1024
)

// Channel selects the transport for an outbound message.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// Message is a single outbound customer or worker communication.
type Message struct {
	Channel Channel `json:"channel"`
	To      string  `json:"to"`
	Subject string  `json:"subject,omitempty"`
	Body    string  `json:"body"`
	From    string  `json:"from,omitempty"`
}

// Sender delivers messages to customers and workers.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	ProviderID() string
}

var errBaseURLRequired = errors.New("messaging base url is required")

// WebhookSender posts messages to the messaging gateway.
type WebhookSender struct {
	baseURL    string
	apiKey     string
	fromNumber string
	fromEmail  string
	httpClient *http.Client
}

// NewWebhookSender builds the gateway-backed sender from configuration.
func NewWebhookSender(cfg config.MessagingConfig) (*WebhookSender, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &WebhookSender{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		fromNumber: strings.TrimSpace(cfg.FromNumber),
		fromEmail:  strings.TrimSpace(cfg.FromEmail),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// ProviderID identifies the transport for logs and delivery records.
func (s *WebhookSender) ProviderID() string {
	return "messaging-webhook"
}

// Send posts the message to the gateway, filling the sender address from
// configuration when the caller leaves it empty.
func (s *WebhookSender) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "message recipient is required")
	}
	if strings.TrimSpace(msg.Body) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "message body is required")
	}
	if msg.From == "" {
		switch msg.Channel {
		case ChannelEmail:
			msg.From = s.fromEmail
		default:
			msg.From = s.fromNumber
		}
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal message")
	}
	url := strings.TrimRight(s.baseURL, "/") + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build message request")
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute message request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), "message send failed")
	}
	return nil
}

// NoopSender swallows messages; used in tests and local development.
type NoopSender struct{}

// NewNoopSender builds a sender that does nothing.
func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

// ProviderID identifies the noop transport.
func (s *NoopSender) ProviderID() string {
	return "messaging-noop"
}

// Send discards the message.
func (s *NoopSender) Send(_ context.Context, _ Message) error {
	return nil
}
