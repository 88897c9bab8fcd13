package preparer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
)

const welcomeSubject = "Welcome to AutonomaX"

var welcomeBody = template.Must(template.New("welcome").Parse(`<html>
<body>
<h2>Welcome to AutonomaX</h2>
<p>Your account <strong>{{.Recipient}}</strong> is ready. Sign in with the email and password you registered with.</p>
</body>
</html>`))

// WelcomeTemplate fills subject and body for a new account when they are empty.
type WelcomeTemplate struct{}

func NewWelcomeTemplate() *WelcomeTemplate {
	return &WelcomeTemplate{}
}

func (w *WelcomeTemplate) Prepare(_ context.Context, msg *Message) error {
	if msg.Subject == "" {
		msg.Subject = welcomeSubject
	}
	if msg.Content != "" {
		return nil
	}
	var buf bytes.Buffer
	if err := welcomeBody.Execute(&buf, msg); err != nil {
		return fmt.Errorf("render welcome email: %w", err)
	}
	msg.Content = buf.String()
	return nil
}
