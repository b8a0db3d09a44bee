package notify

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestNewSMTPMailer_RequiresAddresses(t *testing.T) {
	tests := []Config{
		{},
		{From: "survey@example.com"},
		{To: "owner@example.com"},
	}
	for _, cfg := range tests {
		if _, err := NewSMTPMailer(cfg, nil); !errors.Is(err, ErrNotConfigured) {
			t.Errorf("NewSMTPMailer(%+v) err = %v, want ErrNotConfigured", cfg, err)
		}
	}
}

func TestNewSMTPMailer_Defaults(t *testing.T) {
	m, err := NewSMTPMailer(Config{From: "survey@example.com", To: "owner@example.com"}, nil)
	if err != nil {
		t.Fatalf("NewSMTPMailer: %v", err)
	}
	want := Config{
		Host:     DefaultHost,
		Port:     DefaultPort,
		Username: "survey@example.com",
		TLS:      TLSImplicit,
		From:     "survey@example.com",
		To:       "owner@example.com",
		Subject:  DefaultSubject,
		Body:     DefaultBody,
		Timeout:  DefaultTimeout,
	}
	if diff := cmp.Diff(want, m.cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestNewSMTPMailer_BadTLS(t *testing.T) {
	_, err := NewSMTPMailer(Config{From: "a@example.com", To: "b@example.com", TLS: "maybe"}, nil)
	if err == nil {
		t.Error("expected error for unknown tls mode")
	}
}

func TestMessage_AttachesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personality_assessment_data.csv")
	if err := os.WriteFile(path, []byte("id,current_date\n1,2026-03-01 09:15\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := NewSMTPMailer(Config{From: "survey@example.com", To: "owner@example.com, second@example.com"}, nil)
	if err != nil {
		t.Fatalf("NewSMTPMailer: %v", err)
	}

	msg, err := m.message(path)
	if err != nil {
		t.Fatalf("message: %v", err)
	}
	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	raw := buf.String()
	for _, want := range []string{
		"Subject: File from Website",
		"File Attached",
		"personality_assessment_data.csv",
		"text/csv",
		"owner@example.com",
		"second@example.com",
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestMessage_BadSender(t *testing.T) {
	m := &SMTPMailer{cfg: Config{From: "not an address", To: "owner@example.com"}.withDefaults()}
	if _, err := m.message("x.csv"); err == nil {
		t.Error("expected error for invalid sender")
	}
}

func TestSend_UnreachableServerFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte("id\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := NewSMTPMailer(Config{
		Host:    "127.0.0.1",
		Port:    1,
		TLS:     TLSNone,
		From:    "survey@example.com",
		To:      "owner@example.com",
		Timeout: 2 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("NewSMTPMailer: %v", err)
	}
	if err := m.Send(context.Background(), path); err == nil {
		t.Error("expected send to fail against a closed port")
	}
}

func TestSplitAddresses(t *testing.T) {
	got := splitAddresses(" a@example.com, ,b@example.com ")
	if diff := cmp.Diff([]string{"a@example.com", "b@example.com"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}
