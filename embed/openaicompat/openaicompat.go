// Package openaicompat implements passage.EmbeddingProvider for any
// OpenAI-compatible embeddings API.
//
// Works with OpenAI, Together, Fireworks, Mistral, Ollama, vLLM, LM Studio,
// and any other server that implements the /embeddings endpoint.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	passage "github.com/passagedev/passage"
)

// Provider calls an OpenAI-compatible /embeddings endpoint.
type Provider struct {
	apiKey  string
	model   string
	baseURL string
	dims    int
	name    string
	client  *http.Client
}

// Option configures a Provider.
type Option func(*Provider)

// WithName overrides the provider name reported by Name (default "openai").
func WithName(name string) Option {
	return func(p *Provider) { p.name = name }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.client = c
		}
	}
}

// New creates an embedding provider.
//
// baseURL is the API base (e.g. "https://api.openai.com/v1",
// "http://localhost:11434/v1"). The /embeddings path is appended
// automatically. dims must match what the model returns; responses with a
// different dimensionality are rejected.
func New(apiKey, model, baseURL string, dims int, opts ...Option) *Provider {
	p := &Provider{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		dims:    dims,
		name:    "openai",
		client:  &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Name returns the provider name.
func (p *Provider) Name() string { return p.name }

// Dimensions returns the configured embedding dimensionality.
func (p *Provider) Dimensions() int { return p.dims }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed embeds all texts in a single request and returns the vectors in
// input order. Transport and server failures come back wrapped in
// *passage.ProviderUnavailableError so callers can degrade.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(embedRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	url := p.baseURL + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &passage.ProviderUnavailableError{Provider: p.name, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &passage.ProviderUnavailableError{Provider: p.name, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &passage.ProviderUnavailableError{
			Provider: p.name,
			Err:      fmt.Errorf("embeddings endpoint returned %d: %s", resp.StatusCode, truncate(body, 200)),
		}
	}

	var parsed embedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &passage.ProviderUnavailableError{
			Provider: p.name,
			Err:      fmt.Errorf("parse embed response: %w", err),
		}
	}
	if len(parsed.Data) != len(texts) {
		return nil, &passage.ProviderUnavailableError{
			Provider: p.name,
			Err:      fmt.Errorf("embeddings endpoint returned %d vectors for %d inputs", len(parsed.Data), len(texts)),
		}
	}

	// The API may return entries out of order; place by index.
	out := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, &passage.ProviderUnavailableError{
				Provider: p.name,
				Err:      fmt.Errorf("embedding index %d out of range", d.Index),
			}
		}
		if p.dims > 0 && len(d.Embedding) != p.dims {
			return nil, &passage.ProviderUnavailableError{
				Provider: p.name,
				Err:      fmt.Errorf("embedding has %d dimensions, configured %d", len(d.Embedding), p.dims),
			}
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// Compile-time interface check.
var _ passage.EmbeddingProvider = (*Provider)(nil)
