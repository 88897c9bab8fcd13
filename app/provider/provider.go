package provider

import "context"

// EmailProvider delivers a prepared raw MIME message.
type EmailProvider interface {
	SendRaw(ctx context.Context, recipient string, raw []byte) error
}
