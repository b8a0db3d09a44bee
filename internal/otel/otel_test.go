package otel

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		raw  string
		want map[string]string
	}{
		{raw: "", want: map[string]string{}},
		{raw: "Authorization=Basic abc", want: map[string]string{"Authorization": "Basic abc"}},
		{raw: " a = 1 , b=2,=skip,novalue", want: map[string]string{"a": "1", "b": "2"}},
		{raw: "k=v=w", want: map[string]string{"k": "v=w"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, parseHeaders(tt.raw)); diff != "" {
			t.Errorf("parseHeaders(%q) mismatch (-want +got):\n%s", tt.raw, diff)
		}
	}
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		raw     string
		want    endpoint
		wantErr bool
	}{
		{raw: "http://localhost:4318", want: endpoint{host: "localhost:4318", insecure: true}},
		{raw: "https://cloud.example.com/api/public/otel/", want: endpoint{host: "cloud.example.com", basePath: "/api/public/otel"}},
		{raw: "localhost:4318", wantErr: true},
		{raw: "://", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseEndpoint(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseEndpoint(%q): expected error, got %+v", tt.raw, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseEndpoint(%q): %v", tt.raw, err)
			continue
		}
		if diff := cmp.Diff(tt.want, got, cmp.AllowUnexported(endpoint{})); diff != "" {
			t.Errorf("parseEndpoint(%q) mismatch (-want +got):\n%s", tt.raw, diff)
		}
	}
}

func TestInit_NoEndpointIsNoop(t *testing.T) {
	ctx := context.Background()
	tel, err := Init(ctx, OTELConfig{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer tel.Shutdown(ctx)

	if tel.Tracer == nil || tel.Metrics == nil {
		t.Fatal("expected tracer and metrics even without an endpoint")
	}
	tel.Metrics.RecordAssessment(ctx, OutcomeLLM, 1.5)
	tel.Metrics.RecordTokens(ctx, "openai", "gpt-4o", 10, 20)
	tel.Metrics.RecordExport(ctx, 3, 1)
	tel.Metrics.RecordEmail(ctx, false)
	tel.Metrics.RecordSubmission(ctx)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordAssessment(ctx, OutcomeFallback, 0)
	m.RecordTokens(ctx, "p", "m", 1, 1)
	m.RecordExport(ctx, 1, 0)
	m.RecordEmail(ctx, true)
	m.RecordSubmission(ctx)
}
