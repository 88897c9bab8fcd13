package preparer

import (
	"context"
	"errors"
	"fmt"
)

var ErrEmptyMessage = errors.New("prepared raw message is empty")

// EmailPreparer turns a recipient plus optional subject and body into a raw
// MIME message.
type EmailPreparer interface {
	Prepare(ctx context.Context, recipient string, subject string, content string) ([]byte, error)
}

// Message is the draft passed along a Chain. The last step fills Raw.
type Message struct {
	Recipient string
	Subject   string
	Content   string
	Raw       []byte
}

type Step interface {
	Prepare(ctx context.Context, msg *Message) error
}

// StepFunc adapts a plain function to Step.
type StepFunc func(ctx context.Context, msg *Message) error

func (f StepFunc) Prepare(ctx context.Context, msg *Message) error {
	return f(ctx, msg)
}

type Chain []Step

func NewChain(steps ...Step) Chain {
	return Chain(steps)
}

// NewWelcomeChain renders the account welcome email sent from source.
func NewWelcomeChain(source string) Chain {
	return NewChain(NewWelcomeTemplate(), NewRawPreparer(source))
}

func (c Chain) Prepare(ctx context.Context, recipient string, subject string, content string) ([]byte, error) {
	draft := Message{Recipient: recipient, Subject: subject, Content: content}
	for i, step := range c {
		if err := step.Prepare(ctx, &draft); err != nil {
			return nil, fmt.Errorf("preparer step %d: %w", i, err)
		}
	}
	if len(draft.Raw) == 0 {
		return nil, ErrEmptyMessage
	}
	return draft.Raw, nil
}
