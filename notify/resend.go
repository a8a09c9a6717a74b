package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"album-publisher/types"
)

// ResendNotifier sends email through the Resend HTTP API
type ResendNotifier struct {
	url    string
	apiKey string
	from   string
	to     string
	client *http.Client
	log    logrus.FieldLogger
}

// NewResend creates a Resend transport
func NewResend(url, apiKey, from, to string, log logrus.FieldLogger) *ResendNotifier {
	return &ResendNotifier{
		url:    url,
		apiKey: apiKey,
		from:   from,
		to:     to,
		client: http.DefaultClient,
		log:    log,
	}
}

type resendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

type resendResponse struct {
	ID string `json:"id"`
}

func (r *ResendNotifier) Notify(ctx context.Context, n types.Notification) error {
	html, err := RenderHTML(n)
	if err != nil {
		return fmt.Errorf("render email: %w", err)
	}

	body, err := json.Marshal(resendRequest{
		From:    r.from,
		To:      r.to,
		Subject: Subject(n),
		HTML:    html,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("resend request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("resend API error: %s: %s", resp.Status, bytes.TrimSpace(msg))
	}

	var out resendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode resend response: %w", err)
	}
	r.log.WithField("email_id", out.ID).Info("Email sent successfully")
	return nil
}
