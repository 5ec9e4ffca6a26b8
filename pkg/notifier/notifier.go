// Package notifier delivers reminder emails through a configured provider.
package notifier

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Olami1998/connectnow-suite/pkg/models"
)

// DummyNotifier logs emails instead of sending them.
type DummyNotifier struct {
	log *logrus.Entry
}

func NewDummyNotifier(log *logrus.Logger) *DummyNotifier {
	return &DummyNotifier{
		log: log.WithField("component", "notifier"),
	}
}

func (n *DummyNotifier) Send(_ context.Context, email models.Email) error {
	n.log.Infof("email to %s: %s", strings.Join(email.To, ", "), email.Subject)
	return nil
}
