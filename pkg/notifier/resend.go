package notifier

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
	"github.com/sirupsen/logrus"

	"github.com/Olami1998/connectnow-suite/pkg/models"
)

type Resend struct {
	log    *logrus.Entry
	client *resend.Client
}

func NewResend(log *logrus.Logger, client *resend.Client) *Resend {
	return &Resend{
		log:    log.WithField("component", "notifier-resend"),
		client: client,
	}
}

func (r *Resend) Send(ctx context.Context, email models.Email) error {
	sent, err := r.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    email.From,
		To:      email.To,
		Subject: email.Subject,
		Html:    email.HTML,
	})
	if err != nil {
		return fmt.Errorf("resend send: %w", err)
	}
	r.log.Debugf("resend accepted email %s", sent.Id)
	return nil
}
