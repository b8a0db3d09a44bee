package assessor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// failingAPI answers every request with 500 and counts them.
func failingAPI(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Connection", "close")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	t.Cleanup(func() {
		srv.CloseClientConnections()
		srv.Close()
		http.DefaultClient.CloseIdleConnections()
	})
	return srv, &hits
}

func TestAssess_SingleRequestOnServerError(t *testing.T) {
	tests := []struct {
		name string
		make func(baseURL string) Assessor
	}{
		{
			name: "openai",
			make: func(baseURL string) Assessor {
				return NewOpenAIAssessor(OpenAIConfig{BaseURL: baseURL, APIKey: "test"})
			},
		},
		{
			name: "anthropic",
			make: func(baseURL string) Assessor {
				return NewAnthropicAssessor(AnthropicConfig{BaseURL: baseURL + "/", APIKey: "test"})
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, hits := failingAPI(t)
			a := tt.make(srv.URL)

			n, err := a.Assess(context.Background(), "prompt")
			if err == nil {
				t.Fatalf("expected error, got %+v", n)
			}
			if got := hits.Load(); got != 1 {
				t.Errorf("requests = %d, want 1", got)
			}
		})
	}
}
