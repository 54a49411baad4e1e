package msgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/planbord/backend/core"
)

// Sender delivers HTML mail through the Graph sendMail endpoint.
// Graph acknowledges accepted messages with 202; anything else is a failure.
type Sender struct {
	client *Client
	logger core.Logger
}

func NewSender(client *Client, logger core.Logger) *Sender {
	return &Sender{client: client, logger: logger}
}

type (
	emailAddress struct {
		Address string `json:"address"`
	}
	recipient struct {
		EmailAddress emailAddress `json:"emailAddress"`
	}
	messageBody struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	}
	message struct {
		Subject      string      `json:"subject"`
		Body         messageBody `json:"body"`
		ToRecipients []recipient `json:"toRecipients"`
		CcRecipients []recipient `json:"ccRecipients,omitempty"`
	}
	sendMailRequest struct {
		Message         message `json:"message"`
		SaveToSentItems bool    `json:"saveToSentItems"`
	}
)

// Send posts the message to Graph. It refuses without I/O when the client is
// not authenticated; the caller decides whether to queue a retry.
func (s *Sender) Send(ctx context.Context, to, subject, bodyHTML string, cc []string) bool {
	if !s.client.IsAuthenticated() {
		s.logger.Error("not authenticated to send email",
			core.NewFailuref(core.Unauthenticated, "sending to %s", to))
		return false
	}

	if err := s.send(ctx, to, subject, bodyHTML, cc); err != nil {
		s.logger.Error(fmt.Sprintf("sending email to %s: %v", to, err), err)
		return false
	}
	s.logger.Info(fmt.Sprintf("email sent to %s", to))
	return true
}

// SendWithRefresh refreshes an expired token before sending. A failed refresh
// returns false without attempting the send.
func (s *Sender) SendWithRefresh(ctx context.Context, to, subject, bodyHTML string, cc []string) bool {
	if !s.client.IsAuthenticated() {
		if !s.client.Refresh(ctx) {
			return false
		}
	}
	return s.Send(ctx, to, subject, bodyHTML, cc)
}

func (s *Sender) send(ctx context.Context, to, subject, bodyHTML string, cc []string) error {
	payload := sendMailRequest{
		Message: message{
			Subject:      subject,
			Body:         messageBody{ContentType: "HTML", Content: bodyHTML},
			ToRecipients: []recipient{{EmailAddress: emailAddress{Address: to}}},
		},
		SaveToSentItems: true,
	}
	for _, addr := range cc {
		payload.Message.CcRecipients = append(payload.Message.CcRecipients,
			recipient{EmailAddress: emailAddress{Address: addr}})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encoding sendMail payload")
	}

	endpoint := s.client.conf.Microsoft.GraphBaseURL + "/me/sendMail"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "creating sendMail request")
	}
	req.Header.Set("Authorization", "Bearer "+s.client.Token().AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.client.Do(req)
	if err != nil {
		return core.NewFailure(core.NetworkFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusAccepted {
		return core.NewFailuref(core.RemoteRejected, "sendMail: status %d", resp.StatusCode)
	}
	return nil
}
