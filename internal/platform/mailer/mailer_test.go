package mailer

import (
	"bytes"
	"strings"
	"testing"

	"otpreport/internal/platform/config"
)

func TestSMTPSender_Build(t *testing.T) {
	sender := NewSMTPSender(config.SMTPConfig{
		Host:        "smtp.example.com",
		Port:        587,
		FromAddress: "bot@example.com",
	})

	m, err := sender.build(Message{
		To:       "ops@example.com",
		Subject:  "High unverified percentage",
		HTMLBody: "<p>6.5%</p>",
	})
	if err != nil {
		t.Fatalf("build returned error: %v", err)
	}

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo returned error: %v", err)
	}
	raw := buf.String()

	for _, want := range []string{"bot@example.com", "ops@example.com", "High unverified percentage", "text/html"} {
		if !strings.Contains(raw, want) {
			t.Errorf("Expected message to contain %q", want)
		}
	}
}

func TestSMTPSender_BuildRejectsBadRecipient(t *testing.T) {
	sender := NewSMTPSender(config.SMTPConfig{FromAddress: "bot@example.com"})

	if _, err := sender.build(Message{To: "not an address"}); err == nil {
		t.Error("Expected error for malformed recipient")
	}
}
