package email

import (
	"context"
	"io"
)

type Provider interface {
	Send(ctx context.Context, msg Message) error
}

type Message struct {
	To       []string
	Subject  string
	Template string
	Data     any

	Attachments []Attachment
}

type Attachment struct {
	Filename    string
	ContentType string
	Content     io.Reader
}

type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, msg Message) error {
	return nil
}
