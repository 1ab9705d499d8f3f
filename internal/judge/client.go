// Package judge talks to a Messages-style LLM endpoint that scores battle
// strategies and narrates headline events.
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
)

const apiVersion = "2023-06-01"

var (
	ErrRateLimited   = errors.New("judge rate limit exceeded")
	ErrEmptyResponse = errors.New("empty judge response")
)

// Config configures a Client.
type Config struct {
	URL        string
	APIKey     string
	Model      string
	RatePerMin int
	Timeout    time.Duration
}

// Client implements realm.StrategyJudge and realm.Narrator.
type Client struct {
	url        string
	apiKey     string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

var (
	_ realm.StrategyJudge = (*Client)(nil)
	_ realm.Narrator      = (*Client)(nil)
)

// New returns nil when URL or APIKey is empty (judge disabled).
func New(cfg Config) *Client {
	if cfg.URL == "" || cfg.APIKey == "" {
		return nil
	}
	perMin := cfg.RatePerMin
	if perMin <= 0 {
		perMin = 30
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(float64(perMin)/60), max(1, perMin/10)),
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type response struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

const judgeSystem = `You referee battles in a hex strategy game. Score each side's written strategy from 0 to 30 for how well it fits the troops, terrain and fortifications. Answer with JSON only: {"attackerScore": n, "defenderScore": n, "narrative": "one sentence"}.`

const narratorSystem = `You are the war chronicler of a hex strategy game. Rewrite the event as one vivid sentence of at most 40 words. Keep every name and number. Plain text only.`

// Judge scores both strategies of a battle.
func (c *Client) Judge(ctx context.Context, req realm.JudgeRequest) (realm.JudgeVerdict, error) {
	prompt, err := json.Marshal(req)
	if err != nil {
		return realm.JudgeVerdict{}, fmt.Errorf("encode battle: %w", err)
	}
	text, err := c.complete(ctx, judgeSystem, string(prompt), 300)
	if err != nil {
		return realm.JudgeVerdict{}, err
	}
	return parseVerdict(text)
}

// parseVerdict extracts the JSON object from the model's reply.
func parseVerdict(text string) (realm.JudgeVerdict, error) {
	var v realm.JudgeVerdict
	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return v, fmt.Errorf("no verdict in %q", text)
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &v); err != nil {
		return v, fmt.Errorf("decode verdict: %w", err)
	}
	return v, nil
}

// Narrate rewrites a news event as prose.
func (c *Client) Narrate(ctx context.Context, kind realm.NewsKind, data map[string]any) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Event: %s\n", kind)
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, data[k])
	}
	text, err := c.complete(ctx, narratorSystem, b.String(), 120)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (c *Client) complete(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	if !c.limiter.Allow() {
		return "", ErrRateLimited
	}
	body, err := json.Marshal(request{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("judge call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("judge error %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResp response
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(apiResp.Content) == 0 {
		return "", ErrEmptyResponse
	}

	log.Debug().
		Int("inputTokens", apiResp.Usage.InputTokens).
		Int("outputTokens", apiResp.Usage.OutputTokens).
		Msg("Judge call")
	return apiResp.Content[0].Text, nil
}
