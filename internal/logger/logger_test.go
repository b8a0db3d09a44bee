package logger

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeKVs(t *testing.T) {
	tests := []struct {
		name string
		in   []interface{}
		want []interface{}
	}{
		{
			name: "passes ordinary keys",
			in:   []interface{}{"rows", 3, "path", "data.csv"},
			want: []interface{}{"rows", 3, "path", "data.csv"},
		},
		{
			name: "redacts secrets",
			in:   []interface{}{"smtp_password", "hunter2", "api_key", "sk-123", "Email", "a@b.c"},
			want: []interface{}{"smtp_password", "[REDACTED]", "api_key", "[REDACTED]", "Email", "[REDACTED]"},
		},
		{
			name: "token counts are not secrets",
			in:   []interface{}{"input_tokens", 12, "token", "abc"},
			want: []interface{}{"input_tokens", 12, "token", "[REDACTED]"},
		},
		{
			name: "odd trailing key kept",
			in:   []interface{}{"a", 1, "dangling"},
			want: []interface{}{"a", 1, "dangling"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, sanitizeKVs(tt.in)); diff != "" {
				t.Errorf("sanitizeKVs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLogger_RedactsThroughZap(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("component", "notify").Info("sending", "smtp_password", "hunter2", "to", "ops")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["smtp_password"] != "[REDACTED]" {
		t.Errorf("password not redacted: %v", fields["smtp_password"])
	}
	if fields["component"] != "notify" || fields["to"] != "ops" {
		t.Errorf("unexpected fields: %v", fields)
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("ignored", "k", "v")
	l.Sync()
}
