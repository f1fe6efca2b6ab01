// Package oracle defines the core's single point of contact with a
// language model: a minimal prompt-in, text-out contract plus the
// hot-reloaded provider configuration document at
// <repo>/.operon/llm_config.json.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Config carries provider selection and credentials, reloaded from disk on
// every call so a running session picks up edits without restarting.
type Config struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	APIKey      string  `json:"api_key"`
	BaseURL     string  `json:"base_url"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	TimeoutS    int     `json:"timeout_s"`
}

func configPath(repoRoot string) string {
	return filepath.Join(repoRoot, ".operon", "llm_config.json")
}

// LoadConfig reads <repo>/.operon/llm_config.json, returning a Config with
// Temperature 0.2, MaxTokens 4096 and TimeoutS 60 (and no error) if the file
// does not exist.
func LoadConfig(repoRoot string) (*Config, error) {
	data, err := os.ReadFile(configPath(repoRoot))
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{Temperature: 0.2, MaxTokens: 4096, TimeoutS: 60}, nil
		}
		return nil, fmt.Errorf("read llm_config.json: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse llm_config.json: %w", err)
	}
	return &cfg, nil
}

// Oracle is the core's only view of a language model: prompt in, text out.
// Implementations must not truncate the prompt.
type Oracle interface {
	Call(ctx context.Context, prompt string, requireJSON bool) (string, error)
}

// Transport is the minimal subprocess/HTTP seam an Oracle implementation
// drives; kept separate from Oracle so tests can substitute a fake without
// touching the retry/JSON-extraction logic below.
type Transport interface {
	Send(ctx context.Context, cfg Config, prompt string) (string, error)
}

// ErrUnavailable signals repeated transport failures; a run that receives it
// ends FAILED.
var ErrUnavailable = fmt.Errorf("oracle transport unavailable")

// CoreOracle is the default Oracle: it hot-reloads Config from repoRoot on
// every call, dispatches through Transport, and — when requireJSON is set —
// extracts the first fenced-or-bare JSON value from the response, retrying
// on extraction failure up to maxRetries times.
type CoreOracle struct {
	RepoRoot   string
	Transport  Transport
	MaxRetries int
}

// NewCoreOracle returns a CoreOracle with the spec's bounded retry count.
func NewCoreOracle(repoRoot string, transport Transport) *CoreOracle {
	return &CoreOracle{RepoRoot: repoRoot, Transport: transport, MaxRetries: 3}
}

func (o *CoreOracle) Call(ctx context.Context, prompt string, requireJSON bool) (string, error) {
	cfg, err := LoadConfig(o.RepoRoot)
	if err != nil {
		return "", err
	}

	if cfg.TimeoutS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.TimeoutS)*time.Second)
		defer cancel()
	}

	var lastErr error
	for attempt := 0; attempt <= o.MaxRetries; attempt++ {
		raw, err := o.Transport.Send(ctx, *cfg, prompt)
		if err != nil {
			lastErr = err
			continue
		}
		if !requireJSON {
			return raw, nil
		}
		if extracted, ok := ExtractJSON(raw); ok {
			return extracted, nil
		}
		lastErr = fmt.Errorf("no JSON value found in oracle response")
	}
	return "", fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

var fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\}|\\[.*?\\])\\s*```")

// ExtractJSON returns the first JSON object or array found in text, whether
// fenced in a markdown code block or bare, tolerant of surrounding prose.
func ExtractJSON(text string) (string, bool) {
	if m := fencedJSONRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}

	start := -1
	var open, close byte
	for i, c := range []byte(text) {
		if c == '{' || c == '[' {
			start = i
			open = c
			if c == '{' {
				close = '}'
			} else {
				close = ']'
			}
			break
		}
	}
	if start == -1 {
		return "", false
	}

	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				candidate := text[start : i+1]
				var js interface{}
				if json.Unmarshal([]byte(candidate), &js) == nil {
					return candidate, true
				}
				return "", false
			}
		}
	}
	return "", false
}
