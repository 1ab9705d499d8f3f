package judge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
)

func reply(text string) string {
	b, _ := json.Marshal(map[string]any{"content": []map[string]string{{"text": text}}})
	return string(b)
}

func newServer(t *testing.T, status int, body string, captured *request) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "k" {
			t.Errorf("missing api key header")
		}
		if captured != nil {
			if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewDisabledWithoutConfig(t *testing.T) {
	if New(Config{URL: "http://x"}) != nil {
		t.Error("expected nil client without api key")
	}
	if New(Config{APIKey: "k"}) != nil {
		t.Error("expected nil client without url")
	}
}

func TestJudgeParsesVerdict(t *testing.T) {
	var got request
	srv := newServer(t, http.StatusOK,
		reply("Here you go: {\"attackerScore\": 22, \"defenderScore\": 9, \"narrative\": \"The flank broke.\"}"), &got)
	c := New(Config{URL: srv.URL, APIKey: "k", Model: "m", RatePerMin: 60})

	v, err := c.Judge(context.Background(), realm.JudgeRequest{AttackerStrategy: "flank left", Terrain: realm.Hill})
	if err != nil {
		t.Fatalf("judge: %v", err)
	}
	if v.AttackerScore != 22 || v.DefenderScore != 9 || v.Narrative != "The flank broke." {
		t.Errorf("verdict = %+v", v)
	}
	if got.Model != "m" || len(got.Messages) != 1 || !strings.Contains(got.Messages[0].Content, "flank left") {
		t.Errorf("request = %+v", got)
	}
}

func TestJudgeErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`},
		{"no json", http.StatusOK, reply("I refuse.")},
		{"empty content", http.StatusOK, `{"content":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, tt.status, tt.body, nil)
			c := New(Config{URL: srv.URL, APIKey: "k", RatePerMin: 60})
			if _, err := c.Judge(context.Background(), realm.JudgeRequest{}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRateLimitRejectsWithoutCalling(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(reply("ok")))
	}))
	defer srv.Close()

	// 6 per minute gives a burst of one.
	c := New(Config{URL: srv.URL, APIKey: "k", RatePerMin: 6})
	if _, err := c.Narrate(context.Background(), realm.NewsBattle, nil); err != nil {
		t.Fatalf("first call: %v", err)
	}
	_, err := c.Narrate(context.Background(), realm.NewsBattle, nil)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if calls != 1 {
		t.Errorf("server calls = %d, want 1", calls)
	}
}

func TestNarrateSendsSortedFields(t *testing.T) {
	var got request
	srv := newServer(t, http.StatusOK, reply("  The walls of Avel fell.  "), &got)
	c := New(Config{URL: srv.URL, APIKey: "k", RatePerMin: 60})

	text, err := c.Narrate(context.Background(), realm.NewsBattle, map[string]any{"winner": "Aria", "city": "Avel"})
	if err != nil {
		t.Fatalf("narrate: %v", err)
	}
	if text != "The walls of Avel fell." {
		t.Errorf("text = %q", text)
	}
	content := got.Messages[0].Content
	if strings.Index(content, "city:") > strings.Index(content, "winner:") {
		t.Errorf("fields not sorted: %q", content)
	}
}
