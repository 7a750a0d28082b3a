package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	cache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/kimhsiao/stash/internal/logging"
	"github.com/kimhsiao/stash/internal/models"
	"github.com/kimhsiao/stash/internal/parser/document"
)

// Limits applied to what is sent to the model.
const (
	MaxContentChars = 5000
	MaxExcerpts     = 15
	MaxExcerptChars = 200
)

// Replies returned by FindConnections instead of an error.
const (
	ConnectionsKeyMissing = "AI Key missing."
	ConnectionsFailed     = "Error generating connections."
	ConnectionsEmpty      = "No insights found."
)

// Result is the outcome of analyzing one piece of content.
type Result struct {
	Title   string   `json:"title"`
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
}

// UnconfiguredResult is returned when no credentials are configured.
func UnconfiguredResult() Result {
	return Result{Title: "Untitled", Summary: "", Tags: []string{}}
}

// FailedResult is returned when analysis fails for any reason.
func FailedResult() Result {
	return Result{Title: "New Block", Summary: "Analysis failed.", Tags: []string{"uncategorized"}}
}

// IsFailed reports whether r is the failure sentinel.
func (r Result) IsFailed() bool {
	return r.Title == "New Block" && r.Summary == "Analysis failed."
}

// AIConfig holds AI gateway configuration.
type AIConfig struct {
	Provider      AIProvider    `json:"provider"`
	APIEndpoint   string        `json:"api_endpoint"`
	APIKey        string        `json:"-"`
	ModelName     string        `json:"model_name"`
	MaxTokens     int           `json:"max_tokens"`
	Timeout       time.Duration `json:"timeout"`
	RatePerMinute int           `json:"rate_per_minute"`
	CacheTTL      time.Duration `json:"cache_ttl"`
}

// Gateway talks to the configured generative-AI provider. It never returns
// errors to callers: every failure is mapped to a sentinel value and logged.
type Gateway struct {
	config     AIConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	results    *cache.Cache
}

// NewGateway creates a Gateway. Missing endpoint and model fall back to the
// provider defaults.
func NewGateway(cfg AIConfig) *Gateway {
	if cfg.Provider == "" {
		cfg.Provider = AIProviderGemini
	}
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = defaultEndpoints[cfg.Provider]
	}
	if cfg.ModelName == "" {
		cfg.ModelName = defaultModels[cfg.Provider]
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Minute
	}

	g := &Gateway{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		results:    cache.New(cfg.CacheTTL, 10*time.Minute),
	}
	if cfg.RatePerMinute > 0 {
		perSecond := float64(cfg.RatePerMinute) / 60
		g.limiter = rate.NewLimiter(rate.Limit(perSecond), cfg.RatePerMinute)
	}
	return g
}

// Configured reports whether remote calls will be attempted. Ollama runs
// locally and needs no key.
func (g *Gateway) Configured() bool {
	return g.config.APIKey != "" || g.config.Provider == AIProviderOllama
}

// Provider returns the active provider.
func (g *Gateway) Provider() AIProvider {
	return g.config.Provider
}

// Model returns the active model name.
func (g *Gateway) Model() string {
	return g.config.ModelName
}

// Analyze asks the model for a title, a one-sentence summary and a few
// lowercase tags. Images are not sent.
func (g *Gateway) Analyze(ctx context.Context, content string, t models.BlockType) Result {
	if !g.Configured() {
		logging.Warn("No API key found, skipping AI analysis", map[string]interface{}{
			"provider": string(g.config.Provider),
		})
		return UnconfiguredResult()
	}
	if t == models.BlockTypeImage {
		logging.Warn("Image blocks are not sent for analysis", nil)
		return FailedResult()
	}

	key := cacheKey(t, content)
	if cached, ok := g.results.Get(key); ok {
		return cloneResult(cached.(Result))
	}

	input := content
	if t == models.BlockTypeText {
		input = document.PlainText(content)
	}
	input = truncate(input, MaxContentChars)

	if err := g.wait(ctx); err != nil {
		logging.Error("AI analysis rate limit wait failed", err, nil)
		return FailedResult()
	}

	reply, err := g.complete(ctx, analysisPrompt(input, t), true)
	if err != nil {
		logging.Error("AI analysis failed", err, map[string]interface{}{
			"provider": string(g.config.Provider),
		})
		return FailedResult()
	}

	res, err := parseAnalysisReply(reply)
	if err != nil {
		logging.Error("AI analysis reply unusable", err, nil)
		return FailedResult()
	}
	res.Title = strings.TrimSpace(res.Title)
	res.Summary = strings.TrimSpace(res.Summary)
	res.Tags = normalizeTags(res.Tags)

	g.results.Set(key, cloneResult(res), cache.DefaultExpiration)
	return res
}

// FindConnections asks the model to relate the excerpts to question.
// At most MaxExcerpts excerpts of MaxExcerptChars each are sent.
func (g *Gateway) FindConnections(ctx context.Context, question string, excerpts []string) string {
	if !g.Configured() {
		return ConnectionsKeyMissing
	}

	if len(excerpts) > MaxExcerpts {
		excerpts = excerpts[:MaxExcerpts]
	}
	trimmed := make([]string, len(excerpts))
	for i, e := range excerpts {
		trimmed[i] = truncate(e, MaxExcerptChars)
	}

	if err := g.wait(ctx); err != nil {
		logging.Error("AI connections rate limit wait failed", err, nil)
		return ConnectionsFailed
	}

	reply, err := g.complete(ctx, connectionsPrompt(question, strings.Join(trimmed, "\n---\n")), false)
	if err != nil {
		logging.Error("AI connection finding failed", err, map[string]interface{}{
			"provider": string(g.config.Provider),
		})
		return ConnectionsFailed
	}
	if strings.TrimSpace(reply) == "" {
		return ConnectionsEmpty
	}
	return reply
}

func (g *Gateway) wait(ctx context.Context) error {
	if g.limiter == nil {
		return ctx.Err()
	}
	return g.limiter.Wait(ctx)
}

func analysisPrompt(content string, t models.BlockType) string {
	return fmt.Sprintf(`You are a meticulous archivist for a digital library.
Analyze the following content (which is a %s).

1. Provide a concise Title (max 6 words).
2. Provide a 1-sentence summary or description.
3. Generate 3-5 relevant, single-word lowercase tags.

Respond with a JSON object with the fields "title", "summary" and "tags".

Content:
%s`, t, content)
}

func connectionsPrompt(question, stash string) string {
	return fmt.Sprintf(`Here is a collection of notes and references (The Stash):
%s

Based on this stash, answer the following question or explore the connection:
%q

Keep it brief, insightful, and reference specific items if possible.`, stash, question)
}

func cacheKey(t models.BlockType, content string) string {
	sum := sha256.Sum256([]byte(string(t) + "\x00" + content))
	return hex.EncodeToString(sum[:])
}

func cloneResult(r Result) Result {
	r.Tags = append([]string{}, r.Tags...)
	return r
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
