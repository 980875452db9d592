package mailer

import (
	"fmt"
	netmail "net/mail"
	"strings"

	mail "github.com/xhit/go-simple-mail/v2"
)

// Compose builds the MIME representation of msg. A non-empty HTML body is
// attached as a text/html alternative, which makes the message
// multipart/alternative.
func Compose(msg Message) (*mail.Email, error) {
	email := mail.NewMSG()
	email.SetFrom(fromHeader(msg.From)).
		AddTo(msg.To...).
		SetSubject(msg.Subject)

	switch {
	case msg.Text == "" && msg.HTML != "":
		email.SetBody(mail.TextHTML, msg.HTML)
	case msg.HTML != "":
		email.SetBody(mail.TextPlain, msg.Text)
		email.AddAlternative(mail.TextHTML, msg.HTML)
	default:
		email.SetBody(mail.TextPlain, msg.Text)
	}

	if email.Error != nil {
		return nil, fmt.Errorf("failed to compose email: %w", email.Error)
	}
	return email, nil
}

// Raw returns the RFC 5322 text of msg.
func Raw(msg Message) (string, error) {
	email, err := Compose(msg)
	if err != nil {
		return "", err
	}
	return email.GetMessage(), nil
}

// fromHeader returns from in a form net/mail accepts. FormatFrom leaves the
// display name unquoted, so names with specials such as "Doe, John" are
// re-rendered as a quoted address.
func fromHeader(from string) string {
	if _, err := netmail.ParseAddress(from); err == nil {
		return from
	}
	idx := strings.LastIndex(from, " <")
	if idx < 0 || !strings.HasSuffix(from, ">") {
		return from
	}
	addr := &netmail.Address{
		Name:    strings.TrimSpace(from[:idx]),
		Address: from[idx+2 : len(from)-1],
	}
	return addr.String()
}
