package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

var (
	ErrNoRecipient = errors.New("recipient is required")
	ErrEmptyRaw    = errors.New("raw content is required")
)

type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESProvider sends raw MIME messages through SES v2. Every message is tagged
// with its category so bounces can be told apart per flow.
type SESProvider struct {
	client           sesAPI
	source           string
	configurationSet string
	category         string
}

type SESOption func(*SESProvider)

// WithConfigurationSet routes sends through the named SES configuration set.
func WithConfigurationSet(name string) SESOption {
	return func(p *SESProvider) { p.configurationSet = name }
}

// WithCategory sets the "category" message tag; defaults to "account".
func WithCategory(category string) SESOption {
	return func(p *SESProvider) { p.category = category }
}

func NewSESProvider(cfg aws.Config, source string, opts ...SESOption) *SESProvider {
	return newSESProvider(sesv2.NewFromConfig(cfg), source, opts...)
}

func newSESProvider(client sesAPI, source string, opts ...SESOption) *SESProvider {
	p := &SESProvider{client: client, source: source, category: "account"}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *SESProvider) SendRaw(ctx context.Context, recipient string, raw []byte) error {
	if recipient == "" {
		return ErrNoRecipient
	}
	if len(raw) == 0 {
		return ErrEmptyRaw
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(p.source),
		Destination:      &types.Destination{ToAddresses: []string{recipient}},
		Content:          &types.EmailContent{Raw: &types.RawMessage{Data: raw}},
		EmailTags: []types.MessageTag{
			{Name: aws.String("category"), Value: aws.String(p.category)},
		},
	}
	if p.configurationSet != "" {
		input.ConfigurationSetName = aws.String(p.configurationSet)
	}

	_, err := p.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("ses send to %s: %w", recipient, err)
	}
	return nil
}
