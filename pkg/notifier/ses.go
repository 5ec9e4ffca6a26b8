package notifier

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sesv2Types "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/sirupsen/logrus"

	"github.com/Olami1998/connectnow-suite/pkg/models"
)

const charset = "UTF-8"

// SESClient is the subset of *sesv2.Client used for delivery.
type SESClient interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type SES struct {
	log    *logrus.Entry
	client SESClient
}

func NewSES(log *logrus.Logger, client SESClient) *SES {
	return &SES{
		log:    log.WithField("component", "notifier-ses"),
		client: client,
	}
}

func (s *SES) Send(ctx context.Context, email models.Email) error {
	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(email.From),
		Destination: &sesv2Types.Destination{
			ToAddresses: email.To,
		},
		Content: &sesv2Types.EmailContent{
			Simple: &sesv2Types.Message{
				Subject: &sesv2Types.Content{Data: aws.String(email.Subject), Charset: aws.String(charset)},
				Body: &sesv2Types.Body{
					Html: &sesv2Types.Content{Data: aws.String(email.HTML), Charset: aws.String(charset)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	s.log.Debugf("ses accepted email %s", aws.ToString(out.MessageId))
	return nil
}
