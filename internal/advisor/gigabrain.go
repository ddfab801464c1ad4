// Package advisor asks an external LLM for a second opinion before a spike
// entry is placed. An explicit negative verdict vetoes the entry; an
// unreachable endpoint or a malformed response counts as "no opinion" and
// never blocks a trade.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ranjan2829/PolyBrain/internal/domain"
)

const systemPrompt = `You are a prediction-market trading assistant. You are shown a market whose price just spiked and must decide whether a momentum entry is sensible. Respond with a single JSON object: {"proceed": bool, "confidence": number between 0 and 1, "rationale": short string}. No other text.`

// Client talks to a chat-completion style endpoint (gigabrain.gg or any
// OpenAI-compatible server).
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates an advisor client.
func New(baseURL, apiKey, model string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger.With(slog.String("component", "advisor")),
	}
}

var _ domain.Advisor = (*Client)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Assess describes the spike to the model and parses its verdict.
func (c *Client) Assess(ctx context.Context, result domain.SpikeResult) (domain.AdvisorOpinion, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: describeSpike(result)},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return domain.AdvisorOpinion{}, fmt.Errorf("advisor: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return domain.AdvisorOpinion{}, fmt.Errorf("advisor: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.AdvisorOpinion{}, fmt.Errorf("advisor: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return domain.AdvisorOpinion{}, fmt.Errorf("advisor: %w", domain.ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.AdvisorOpinion{}, fmt.Errorf("advisor: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return domain.AdvisorOpinion{}, fmt.Errorf("advisor: decode response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return domain.AdvisorOpinion{}, fmt.Errorf("advisor: empty response")
	}

	opinion, err := parseOpinion(chat.Choices[0].Message.Content)
	if err != nil {
		return domain.AdvisorOpinion{}, fmt.Errorf("advisor: %w", err)
	}
	return opinion, nil
}

// describeSpike renders the spike result into a compact prompt.
func describeSpike(result domain.SpikeResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Market: %s\n", result.Question)
	fmt.Fprintf(&b, "Volume: $%.0f, liquidity: $%.0f\n",
		result.Snapshot.Volume, result.Snapshot.Liquidity)
	for _, s := range result.Spikes {
		switch s.Type {
		case domain.SpikeTypePrice:
			fmt.Fprintf(&b, "Price spike (%s) on %q: %.3f -> %.3f (%.2f%%)\n",
				s.Direction, s.Outcome, s.Previous, s.Current, s.ChangePercent)
		case domain.SpikeTypeVolume:
			fmt.Fprintf(&b, "Volume spike: %.0f -> %.0f (%.1fx)\n",
				s.Previous, s.Current, s.ChangeRatio)
		}
	}
	b.WriteString("Should a small momentum position be opened on the cheapest outcome?")
	return b.String()
}

// parseOpinion extracts the verdict JSON from the model output. Models
// sometimes wrap JSON in a code fence or surrounding prose, so the first
// balanced object in the text is used.
func parseOpinion(content string) (domain.AdvisorOpinion, error) {
	raw := extractJSON(content)
	if raw == "" {
		return domain.AdvisorOpinion{}, fmt.Errorf("no JSON object in model output")
	}

	var verdict struct {
		Proceed    bool    `json:"proceed"`
		Confidence float64 `json:"confidence"`
		Rationale  string  `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return domain.AdvisorOpinion{}, fmt.Errorf("parse verdict: %w", err)
	}

	return domain.AdvisorOpinion{
		Proceed:    verdict.Proceed,
		Confidence: verdict.Confidence,
		Rationale:  verdict.Rationale,
	}, nil
}

// extractJSON returns the first balanced top-level JSON object in s.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
