package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Request is one completion call.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
	// JSON asks the model for a JSON object response.
	JSON bool
}

// Provider is the interface for LLM providers.
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
	IsConfigured() bool
	Name() string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func messages(req Request) []chatMessage {
	var msgs []chatMessage
	if req.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.System})
	}
	return append(msgs, chatMessage{Role: "user", Content: req.Prompt})
}

// OllamaProvider is a local Ollama LLM provider.
type OllamaProvider struct {
	Model   string
	BaseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(model, baseURL string, logger *zap.Logger) *OllamaProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OllamaProvider{
		Model:   model,
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 120 * time.Second},
		logger:  logger,
	}
}

func (o *OllamaProvider) Name() string { return "ollama:" + o.Model }

// IsConfigured checks if Ollama is running and the model is available.
func (o *OllamaProvider) IsConfigured() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false
	}

	modelBase := strings.SplitN(o.Model, ":", 2)[0]
	for _, m := range result.Models {
		if strings.Contains(m.Name, modelBase) {
			return true
		}
	}
	o.logger.Warn("ollama model not found", zap.String("model", o.Model))
	return false
}

// Generate sends a chat request to Ollama and returns the response text.
func (o *OllamaProvider) Generate(ctx context.Context, r Request) (string, error) {
	body := map[string]any{
		"model":    o.Model,
		"messages": messages(r),
		"stream":   false,
		"options": map[string]any{
			"num_predict": r.MaxTokens,
			"temperature": r.Temperature,
		},
	}
	if r.JSON {
		body["format"] = "json"
	}

	var result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := postJSON(ctx, o.client, o.BaseURL+"/api/chat", nil, body, &result); err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	return result.Message.Content, nil
}

// OpenAIProvider is an OpenAI API provider.
type OpenAIProvider struct {
	Model   string
	APIKey  string
	BaseURL string
	client  *http.Client
}

// NewOpenAIProvider creates a new OpenAI provider reading its key from apiKeyEnv.
func NewOpenAIProvider(model, apiKeyEnv string) *OpenAIProvider {
	return &OpenAIProvider{
		Model:   model,
		APIKey:  os.Getenv(apiKeyEnv),
		BaseURL: "https://api.openai.com/v1",
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (o *OpenAIProvider) Name() string { return "openai:" + o.Model }

// IsConfigured checks if the API key is set.
func (o *OpenAIProvider) IsConfigured() bool {
	return o.APIKey != ""
}

// Generate sends a chat completion request to OpenAI and returns the response text.
func (o *OpenAIProvider) Generate(ctx context.Context, r Request) (string, error) {
	if o.APIKey == "" {
		return "", fmt.Errorf("OpenAI API key not configured")
	}

	body := map[string]any{
		"model":       o.Model,
		"messages":    messages(r),
		"max_tokens":  r.MaxTokens,
		"temperature": r.Temperature,
	}
	if r.JSON {
		body["response_format"] = map[string]string{"type": "json_object"}
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	headers := map[string]string{"Authorization": "Bearer " + o.APIKey}
	if err := postJSON(ctx, o.client, o.BaseURL+"/chat/completions", headers, body, &result); err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in OpenAI response")
	}
	return result.Choices[0].Message.Content, nil
}

func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("API returned %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Options selects and configures a provider.
type Options struct {
	Provider    string
	Model       string
	OllamaURL   string
	OpenAIModel string
	APIKeyEnv   string
}

// CreateProvider creates an LLM provider based on configuration. It prefers
// Ollama when requested and reachable, then OpenAI. A nil Provider means
// advice will be served from the fallback set.
func CreateProvider(opts Options, logger *zap.Logger) Provider {
	if logger == nil {
		logger = zap.NewNop()
	}

	if strings.ToLower(opts.Provider) == "ollama" {
		p := NewOllamaProvider(opts.Model, opts.OllamaURL, logger)
		if p.IsConfigured() {
			logger.Info("using ollama", zap.String("model", opts.Model))
			return p
		}
		logger.Warn("ollama not available, trying OpenAI fallback")
	}

	p := NewOpenAIProvider(opts.OpenAIModel, opts.APIKeyEnv)
	if p.IsConfigured() {
		logger.Info("using openai", zap.String("model", opts.OpenAIModel))
		return p
	}

	logger.Warn("no LLM provider available; advice will use fallback messages",
		zap.String("api_key_env", opts.APIKeyEnv))
	return nil
}
