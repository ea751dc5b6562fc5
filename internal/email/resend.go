package email

import (
	"fmt"

	"github.com/resend/resend-go/v3"

	"github.com/kuitang/yanote/internal/obs"
)

// ResendEmailService delivers mail through the Resend API.
type ResendEmailService struct {
	client *resend.Client
	from   string
}

// NewResendEmailService returns a sender for the verified address from.
func NewResendEmailService(apiKey, from string) *ResendEmailService {
	return &ResendEmailService{client: resend.NewClient(apiKey), from: from}
}

func (s *ResendEmailService) Send(to, templateName string, data any) error {
	subject, body, err := renderTemplate(templateName, data)
	if err != nil {
		return err
	}

	sent, err := s.client.Emails.Send(&resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Html:    body,
	})
	if err != nil {
		return fmt.Errorf("send %s email: %w", templateName, err)
	}
	obs.Pkg("email").Debug("email_sent", "template", templateName, "resend_id", sent.Id)
	return nil
}
