// Package notify sends out-of-band run notifications (email by default).
package notify

import (
	"bytes"
	"context"
	"html/template"

	"github.com/sirupsen/logrus"

	"album-publisher/config"
	"album-publisher/logging"
	"album-publisher/types"
)

// Notifier delivers one notification
type Notifier interface {
	Notify(ctx context.Context, n types.Notification) error
}

// New picks the configured transport and wraps it in Safe.
// Without credentials for the transport it falls back to logging.
func New(cfg config.NotifyConfig, secrets *config.Secrets, log logrus.FieldLogger) Notifier {
	log = logging.Component(log, "notify")

	var next Notifier
	switch cfg.Transport {
	case "resend":
		if secrets.ResendAPIKey == "" {
			log.Warn("RESEND_API_KEY not found, skipping email notification")
			next = &LogNotifier{log: log}
			break
		}
		next = NewResend(cfg.ResendURL, secrets.ResendAPIKey, cfg.From, secrets.NotificationEmail, log)
	case "smtp":
		if cfg.SMTPHost == "" {
			log.Warn("SMTP host not configured, skipping email notification")
			next = &LogNotifier{log: log}
			break
		}
		next = NewSMTP(cfg.SMTPHost, cfg.SMTPPort, secrets.SMTPUsername, secrets.SMTPPassword, cfg.From, secrets.NotificationEmail)
	default:
		next = &LogNotifier{log: log}
	}
	return NewSafe(next, cfg.Timeout, log)
}

// Emoji is the subject prefix for a notification type
func Emoji(t types.NotificationType) string {
	switch t {
	case types.NotifySuccess:
		return "✅"
	case types.NotifyError:
		return "❌"
	default:
		return "ℹ️"
	}
}

// Subject is the full email subject line
func Subject(n types.Notification) string {
	return Emoji(n.Type) + " " + n.Subject
}

var bodyTemplate = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<head>
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif; line-height: 1.6; color: #333; }
    .container { max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; padding: 30px; border-radius: 8px 8px 0 0; }
    .header h1 { margin: 0; font-size: 24px; }
    .content { background: #f9fafb; padding: 30px; border-radius: 0 0 8px 8px; }
    .message { background: white; padding: 20px; border-radius: 8px; border-left: 4px solid #667eea; margin: 20px 0; }
    .metadata { background: white; padding: 15px; border-radius: 8px; margin-top: 20px; font-size: 14px; }
    .metadata-item { margin: 8px 0; }
    .metadata-label { font-weight: 600; color: #667eea; }
    .footer { text-align: center; margin-top: 30px; color: #6b7280; font-size: 14px; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>{{.Subject}}</h1>
      <p style="margin: 10px 0 0 0; opacity: 0.9;">Pravos YouTube Automation</p>
    </div>
    <div class="content">
      <div class="message">
        <p style="margin: 0; font-size: 16px;">{{.Message}}</p>
      </div>
{{- if .Metadata}}
      <div class="metadata">
        <p style="margin: 0 0 10px 0; font-weight: 600;">Details:</p>
{{- range .Metadata}}
        <div class="metadata-item"><span class="metadata-label">{{.Label}}:</span> {{.Value}}</div>
{{- end}}
      </div>
{{- end}}
      <div class="footer">
        <p>Automated by Pravos Publishing System</p>
        <p style="margin-top: 10px;"><a href="https://studio.youtube.com" style="color: #667eea; text-decoration: none;">View YouTube Studio →</a></p>
      </div>
    </div>
  </div>
</body>
</html>
`))

// RenderHTML renders the email body
func RenderHTML(n types.Notification) (string, error) {
	var buf bytes.Buffer
	err := bodyTemplate.Execute(&buf, struct {
		Subject  string
		Message  string
		Metadata []types.Field
	}{Subject(n), n.Message, n.Metadata})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// LogNotifier only logs what would have been sent
type LogNotifier struct {
	log logrus.FieldLogger
}

// NewLog creates a LogNotifier
func NewLog(log logrus.FieldLogger) *LogNotifier {
	return &LogNotifier{log: logging.Component(log, "notify")}
}

func (l *LogNotifier) Notify(_ context.Context, n types.Notification) error {
	entry := l.log.WithField("type", n.Type)
	for _, f := range n.Metadata {
		entry = entry.WithField(f.Label, f.Value)
	}
	entry.Infof("Would have sent: %s: %s", n.Subject, n.Message)
	return nil
}
