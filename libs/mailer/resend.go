package mailer

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// ResendProvider delivers messages through the Resend HTTP API.
type ResendProvider struct {
	client *resend.Client
}

// NewResendProvider creates a Resend provider authenticated with apiKey.
func NewResendProvider(apiKey string) *ResendProvider {
	return &ResendProvider{client: resend.NewClient(apiKey)}
}

// Name returns the provider name.
func (r *ResendProvider) Name() string {
	return "resend"
}

// Send posts msg to Resend and returns the id Resend assigned to it.
func (r *ResendProvider) Send(ctx context.Context, msg Message) (SendResult, error) {
	params, err := resendRequest(msg)
	if err != nil {
		return SendResult{}, err
	}

	sent, err := r.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return SendResult{}, fmt.Errorf("resend send failed: %w", err)
	}
	return SendResult{ProviderMessageID: sent.Id}, nil
}

// resendRequest maps msg onto the API payload. The From header gets the
// same quoting as composed messages, and HTML alternatives go in the html
// field next to the plain text.
func resendRequest(msg Message) (*resend.SendEmailRequest, error) {
	to := compactAddresses(msg.To)
	if len(to) == 0 {
		return nil, ErrNoRecipients
	}

	req := &resend.SendEmailRequest{
		From:    fromHeader(msg.From),
		To:      to,
		Subject: msg.Subject,
		Text:    msg.Text,
	}
	for _, alt := range msg.Alternatives() {
		if alt.MimeType == "text/html" {
			req.Html = alt.Content
		}
	}
	return req, nil
}
