package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// HTTPEmailSender posts messages to a transactional email API.
type HTTPEmailSender struct {
	URL    string
	APIKey string
	From   string
	Client *http.Client
}

func NewHTTPEmailSender(url, apiKey, from string) *HTTPEmailSender {
	return &HTTPEmailSender{
		URL:    url,
		APIKey: apiKey,
		From:   from,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

type emailPayload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

func (s *HTTPEmailSender) SendEmail(ctx context.Context, to, subject, body string) error {
	buf, err := json.Marshal(emailPayload{From: s.From, To: to, Subject: subject, Text: body})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.APIKey)

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("email api: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("email api: %s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	return nil
}

// messageCreator is the part of the Twilio REST API the SMS sender uses.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type TwilioSMSSender struct {
	api    messageCreator
	from   string
	logger zerolog.Logger
}

func NewTwilioSMSSender(accountSID, authToken, from string, logger zerolog.Logger) *TwilioSMSSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSMSSender{api: client.Api, from: from, logger: logger}
}

// SendSMS has no context-aware call in the Twilio client; ctx is only checked
// before sending.
func (s *TwilioSMSSender) SendSMS(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio: %w", err)
	}
	if resp != nil && resp.Sid != nil {
		s.logger.Debug().Str("sid", *resp.Sid).Msg("sms accepted")
	}
	return nil
}

// LogSender stands in for both channels when no provider is configured.
type LogSender struct {
	Logger zerolog.Logger
}

func (s LogSender) SendEmail(_ context.Context, to, subject, _ string) error {
	s.Logger.Info().Str("to", to).Str("subject", subject).Msg("email delivery skipped: no provider configured")
	return nil
}

func (s LogSender) SendSMS(_ context.Context, to, _ string) error {
	s.Logger.Info().Str("to", to).Msg("sms delivery skipped: no provider configured")
	return nil
}
