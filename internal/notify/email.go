package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	brevo "github.com/getbrevo/brevo-go/lib"
)

// Email mirrors notifications to an operator mailbox through Brevo.
type Email struct {
	Client *brevo.APIClient
	From   string
	To     string
}

// NewEmail returns nil when the API key or a mailbox is missing.
func NewEmail(apiKey, from, to string) *Email {
	if apiKey == "" || from == "" || to == "" {
		return nil
	}
	cfg := brevo.NewConfiguration()
	cfg.AddDefaultHeader("api-key", apiKey)
	return &Email{Client: brevo.NewAPIClient(cfg), From: from, To: to}
}

func (e *Email) Notify(ctx context.Context, subscriberID, text string) error {
	if e == nil || e.Client == nil {
		return errors.New("email disabled")
	}
	subject := text
	if i := strings.IndexByte(subject, '\n'); i >= 0 {
		subject = subject[:i]
	}
	body := fmt.Sprintf("%s\n\nSubscriber: %s\n", text, subscriberID)
	msg := brevo.SendSmtpEmail{
		Sender: &brevo.SendSmtpEmailSender{
			Name:  "domainwatch",
			Email: e.From,
		},
		To: []brevo.SendSmtpEmailTo{
			{Email: e.To},
		},
		Subject:     subject,
		HtmlContent: fmt.Sprintf("<pre>%s</pre>", body),
		TextContent: body,
	}
	if _, _, err := e.Client.TransactionalEmailsApi.SendTransacEmail(ctx, msg); err != nil {
		return fmt.Errorf("brevo send: %w", err)
	}
	return nil
}
