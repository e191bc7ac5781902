package mail

import (
	"context"
	"strings"
	"testing"

	"userboard/internal/config"
)

func TestNew_FallsBackWithoutSMTP(t *testing.T) {
	m := New(config.SMTPConfig{From: "no-reply@example.com"})
	if _, ok := m.(*LogMailer); !ok {
		t.Errorf("expected LogMailer fallback, got %T", m)
	}
}

func TestNew_SMTPWhenConfigured(t *testing.T) {
	m := New(config.SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		User:     "mailer",
		Password: "secret",
		From:     "no-reply@example.com",
	})
	if _, ok := m.(*SMTPMailer); !ok {
		t.Errorf("expected SMTPMailer, got %T", m)
	}
}

func TestLogMailer_SendWelcome(t *testing.T) {
	m := &LogMailer{From: "no-reply@example.com"}
	if err := m.SendWelcome(context.Background(), "a@x.com", "A"); err != nil {
		t.Errorf("expected no error from log mailer, got %v", err)
	}
}

func TestWelcomeMessage(t *testing.T) {
	msg := string(welcomeMessage("no-reply@example.com", "a@x.com", "Ada"))

	if !strings.Contains(msg, "To: a@x.com") {
		t.Error("message should carry the recipient address")
	}
	if !strings.Contains(msg, "Subject: Welcome to Admin Dashboard") {
		t.Error("message should carry the welcome subject")
	}
	if !strings.Contains(msg, "Welcome Ada!") {
		t.Error("message body should greet the user by name")
	}
	if !strings.Contains(msg, "text/html") {
		t.Error("message should declare an HTML content type")
	}
}

func TestSMTPMailer_CancelledContext(t *testing.T) {
	m := &SMTPMailer{cfg: config.SMTPConfig{Host: "smtp.example.com", Port: 587}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.SendWelcome(ctx, "a@x.com", "A"); err == nil {
		t.Error("expected error for cancelled context")
	}
}
