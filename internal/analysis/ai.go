// Package analysis provides the AI gateway: block analysis (title, summary,
// tags) and connection finding across blocks, over several providers.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// AIProvider represents supported AI providers.
type AIProvider string

const (
	AIProviderGemini AIProvider = "gemini"
	AIProviderOpenAI AIProvider = "openai"
	AIProviderClaude AIProvider = "claude"
	AIProviderOllama AIProvider = "ollama"
)

// Default endpoints and models per provider.
var (
	defaultEndpoints = map[AIProvider]string{
		AIProviderGemini: "https://generativelanguage.googleapis.com",
		AIProviderOpenAI: "https://api.openai.com/v1",
		AIProviderClaude: "https://api.anthropic.com",
		AIProviderOllama: "http://localhost:11434",
	}
	defaultModels = map[AIProvider]string{
		AIProviderGemini: "gemini-3-flash-preview",
		AIProviderOpenAI: "gpt-4o-mini",
		AIProviderClaude: "claude-3-5-haiku-latest",
		AIProviderOllama: "llama3",
	}
)

// ParseProvider maps a configuration string to a provider. Unknown values
// fall back to Gemini.
func ParseProvider(s string) AIProvider {
	switch p := AIProvider(strings.ToLower(strings.TrimSpace(s))); p {
	case AIProviderOpenAI, AIProviderClaude, AIProviderOllama:
		return p
	default:
		return AIProviderGemini
	}
}

// errorBody captures the error object most providers return.
type errorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// complete sends one prompt to the configured provider and returns the text
// reply. When jsonReply is set the provider is asked for a JSON object.
func (g *Gateway) complete(ctx context.Context, prompt string, jsonReply bool) (string, error) {
	switch g.config.Provider {
	case AIProviderGemini:
		return g.completeGemini(ctx, prompt, jsonReply)
	case AIProviderOpenAI:
		return g.completeOpenAI(ctx, prompt, jsonReply)
	case AIProviderClaude:
		return g.completeClaude(ctx, prompt)
	case AIProviderOllama:
		return g.completeOllama(ctx, prompt, jsonReply)
	default:
		return "", fmt.Errorf("unsupported AI provider: %s", g.config.Provider)
	}
}

// =====================================================
// Gemini Integration
// =====================================================

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string                 `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]interface{} `json:"responseSchema,omitempty"`
	MaxOutputTokens  int                    `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *errorBody `json:"error,omitempty"`
}

// analysisSchema is the response schema for block analysis.
var analysisSchema = map[string]interface{}{
	"type": "OBJECT",
	"properties": map[string]interface{}{
		"title":   map[string]interface{}{"type": "STRING"},
		"summary": map[string]interface{}{"type": "STRING"},
		"tags": map[string]interface{}{
			"type":  "ARRAY",
			"items": map[string]interface{}{"type": "STRING"},
		},
	},
}

func (g *Gateway) completeGemini(ctx context.Context, prompt string, jsonReply bool) (string, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	}
	gc := &geminiGenerationConfig{MaxOutputTokens: g.config.MaxTokens}
	if jsonReply {
		gc.ResponseMimeType = "application/json"
		gc.ResponseSchema = analysisSchema
	}
	reqBody.GenerationConfig = gc

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(g.config.APIEndpoint, "/"), url.PathEscape(g.config.ModelName))

	var resp geminiResponse
	if err := g.postJSON(ctx, endpoint, reqBody, map[string]string{
		"x-goog-api-key": g.config.APIKey,
	}, &resp); err != nil {
		return "", err
	}

	if resp.Error != nil {
		return "", fmt.Errorf("Gemini API error: %s", resp.Error.Message)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no response from Gemini")
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

// =====================================================
// OpenAI Integration
// =====================================================

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *errorBody `json:"error,omitempty"`
}

func (g *Gateway) completeOpenAI(ctx context.Context, prompt string, jsonReply bool) (string, error) {
	reqBody := openAIRequest{
		Model:     g.config.ModelName,
		Messages:  []message{{Role: "user", Content: prompt}},
		MaxTokens: g.config.MaxTokens,
	}
	if jsonReply {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var resp openAIResponse
	if err := g.postJSON(ctx, strings.TrimRight(g.config.APIEndpoint, "/")+"/chat/completions", reqBody, map[string]string{
		"Authorization": "Bearer " + g.config.APIKey,
	}, &resp); err != nil {
		return "", err
	}

	if resp.Error != nil {
		return "", fmt.Errorf("OpenAI API error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}
	return resp.Choices[0].Message.Content, nil
}

// =====================================================
// Claude Integration
// =====================================================

type claudeRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type claudeResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Error *errorBody `json:"error,omitempty"`
}

func (g *Gateway) completeClaude(ctx context.Context, prompt string) (string, error) {
	reqBody := claudeRequest{
		Model:     g.config.ModelName,
		MaxTokens: g.config.MaxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	}

	var resp claudeResponse
	if err := g.postJSON(ctx, strings.TrimRight(g.config.APIEndpoint, "/")+"/v1/messages", reqBody, map[string]string{
		"x-api-key":         g.config.APIKey,
		"anthropic-version": "2023-06-01",
	}, &resp); err != nil {
		return "", err
	}

	if resp.Error != nil {
		return "", fmt.Errorf("Claude API error: %s", resp.Error.Message)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("no response from Claude")
	}
	return resp.Content[0].Text, nil
}

// =====================================================
// Ollama Integration (Local)
// =====================================================

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

func (g *Gateway) completeOllama(ctx context.Context, prompt string, jsonReply bool) (string, error) {
	reqBody := ollamaRequest{
		Model:  g.config.ModelName,
		Prompt: prompt,
		Stream: false,
	}
	if jsonReply {
		reqBody.Format = "json"
	}

	var resp ollamaResponse
	if err := g.postJSON(ctx, strings.TrimRight(g.config.APIEndpoint, "/")+"/api/generate", reqBody, nil, &resp); err != nil {
		return "", err
	}

	if resp.Error != "" {
		return "", fmt.Errorf("Ollama error: %s", resp.Error)
	}
	return resp.Response, nil
}

// =====================================================
// Helpers
// =====================================================

func (g *Gateway) postJSON(ctx context.Context, endpoint string, body interface{}, headers map[string]string, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned %d: %s", g.config.Provider, resp.StatusCode, string(snippet))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// parseAnalysisReply extracts the JSON object from a model reply. Models
// outside Gemini sometimes wrap it in prose or code fences.
func parseAnalysisReply(reply string) (Result, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return Result{}, fmt.Errorf("reply contains no JSON object")
	}

	var r Result
	if err := json.Unmarshal([]byte(reply[start:end+1]), &r); err != nil {
		return Result{}, fmt.Errorf("failed to parse reply: %w", err)
	}
	return r, nil
}

// normalizeTags lowercases, trims and de-duplicates tags.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(strings.Trim(tag, `"'#`)))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
