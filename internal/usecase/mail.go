package usecase

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/arklim/storefront-iam/internal/core/domain"
)

// MailTemplate describes an account mail whose body ends with a tokenized link.
type MailTemplate struct {
	Subject string
	Body    string
	Link    string
}

// Render builds the mail for email, appending token to the link as the token query parameter.
func (t MailTemplate) Render(email, token string) (domain.MailSendingEvent, error) {
	link, err := url.Parse(t.Link)
	if err != nil {
		return domain.MailSendingEvent{}, fmt.Errorf("parse mail link: %w", err)
	}
	query := link.Query()
	query.Set("token", token)
	link.RawQuery = query.Encode()

	return domain.MailSendingEvent{
		Email:   email,
		Subject: t.Subject,
		Body:    strings.Join([]string{t.Body, link.String()}, "\n"),
	}, nil
}
