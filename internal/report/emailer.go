package report

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/prozo/dealpulse/internal/config"
	"github.com/prozo/dealpulse/internal/resilience"
)

// Attachment is a file carried on an outgoing report email.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a single HTML email with optional attachments.
type Message struct {
	To          []string
	Subject     string
	HTMLBody    string
	Attachments []Attachment
}

// Sender delivers report emails. DryRunSender and fakes in tests satisfy it.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender sends mail over SMTP with STARTTLS. A failed send is retried
// once after a short delay before being surfaced to the caller.
type SMTPSender struct {
	cfg    config.EmailConfig
	retry  resilience.RetryConfig
	logger *zap.Logger

	// sendFunc is swapped in tests to avoid a live SMTP connection.
	sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender builds a sender from the email config.
func NewSMTPSender(cfg config.EmailConfig, logger *zap.Logger) *SMTPSender {
	delay := time.Duration(cfg.RetryDelay) * time.Second
	if delay <= 0 {
		delay = 5 * time.Second
	}
	return &SMTPSender{
		cfg:      cfg,
		retry:    resilience.FixedRetryConfig(2, delay),
		logger:   logger,
		sendFunc: smtp.SendMail,
	}
}

// From returns the formatted From header for outgoing reports.
func (s *SMTPSender) From() string {
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.cfg.FromName), s.cfg.Username)
}

// Send delivers msg, retrying once on any failure.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return eris.New("emailer: no recipients")
	}
	raw, err := BuildMIME(s.From(), msg)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.SMTPHost)

	retry := s.retry
	retry.OnRetry = resilience.RetryLogger("smtp", msg.Subject)
	err = resilience.Do(ctx, retry, func(context.Context) error {
		return s.sendFunc(addr, auth, s.cfg.Username, msg.To, raw)
	})
	if err != nil {
		return eris.Wrapf(err, "emailer: send to %s", strings.Join(msg.To, ", "))
	}
	s.logger.Info("email sent",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("attachments", len(msg.Attachments)))
	return nil
}

// BuildMIME assembles the raw multipart/mixed message bytes.
func BuildMIME(from string, msg Message) ([]byte, error) {
	const boundary = "dealpulse-mime-boundary"

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
	b.WriteString(msg.HTMLBody)
	b.WriteString("\r\n")

	for _, att := range msg.Attachments {
		ct := att.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		fmt.Fprintf(&b, "Content-Type: %s; name=%q\r\n", ct, att.Filename)
		b.WriteString("Content-Transfer-Encoding: base64\r\n")
		fmt.Fprintf(&b, "Content-Disposition: attachment; filename=%q\r\n\r\n", att.Filename)

		enc := base64.StdEncoding.EncodeToString(att.Data)
		for len(enc) > 0 {
			n := 76
			if len(enc) < n {
				n = len(enc)
			}
			b.WriteString(enc[:n])
			b.WriteString("\r\n")
			enc = enc[n:]
		}
	}
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String()), nil
}

// DryRunSender logs what would be sent without touching the network.
type DryRunSender struct {
	Logger *zap.Logger
}

func (d *DryRunSender) Send(_ context.Context, msg Message) error {
	d.Logger.Info("dry run: skipping email",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("body_bytes", len(msg.HTMLBody)),
		zap.Int("attachments", len(msg.Attachments)))
	return nil
}

// AttachmentContentType maps a report format to its MIME type.
func AttachmentContentType(format string) string {
	switch format {
	case "xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv"
	}
}
