package sms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/smallbiznis/rentledger/internal/config"
	"go.uber.org/fx"
)

var (
	ErrInvalidRecipient = errors.New("invalid_sms_recipient")
	ErrEmptyMessage     = errors.New("empty_sms_message")
)

type Provider interface {
	Send(ctx context.Context, to, message string) error
}

var Module = fx.Module("providers.sms",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config) Provider {
	if !cfg.SMS.Enabled || strings.TrimSpace(cfg.SMS.Endpoint) == "" {
		return &NoOpProvider{}
	}
	return NewGateway(cfg.SMS.Endpoint, cfg.SMS.APIKey, cfg.SMS.SenderID)
}

// outbound payload of the SMS gateway
type sendRequest struct {
	From    string `json:"from,omitempty"`
	To      string `json:"to"`
	Message string `json:"message"`
}

type GatewayProvider struct {
	client   *resty.Client
	senderID string
}

func NewGateway(endpoint, apiKey, senderID string) *GatewayProvider {
	client := resty.New().
		SetBaseURL(strings.TrimRight(endpoint, "/")).
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	return &GatewayProvider{client: client, senderID: senderID}
}

func (p *GatewayProvider) Send(ctx context.Context, to, message string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return ErrInvalidRecipient
	}
	if strings.TrimSpace(message) == "" {
		return ErrEmptyMessage
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(sendRequest{From: p.senderID, To: to, Message: message}).
		Post("/messages")
	if err != nil {
		return fmt.Errorf("sms request: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		return nil
	default:
		return fmt.Errorf("sms request status: %d", resp.StatusCode())
	}
}

type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, to, message string) error {
	return nil
}
