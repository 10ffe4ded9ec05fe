// Package advisor integrates an optional local Ollama instance to enrich
// anomaly reports with natural-language guidance. The advisor is strictly
// best-effort: when the endpoint is unreachable the audit proceeds without
// advisory text.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	apperrors "golang-tax-audit-service/pkg/errors"
	"golang-tax-audit-service/pkg/logger"
)

const (
	// DefaultEndpoint is the conventional local Ollama address.
	DefaultEndpoint = "http://localhost:11434"
	// DefaultModel is the model queried when none is configured.
	DefaultModel = "llama3.2"

	probeTimeout = 2 * time.Second
	queryTimeout = 10 * time.Second
)

// ErrUnavailable marks an advisor whose endpoint did not answer the probe.
var ErrUnavailable = apperrors.NetworkError(apperrors.CodeConnectionFailed, DefaultEndpoint, nil)

// Client talks to an Ollama server. Responses are cached per prompt so
// repeated anomaly categories within one run cost a single round trip.
type Client struct {
	endpoint string
	model    string
	http     *http.Client
	logger   logger.Logger

	mu        sync.Mutex
	available *bool
	cache     map[string]string
}

// NewClient creates an advisor client. Empty endpoint or model fall back
// to the defaults.
func NewClient(endpoint, model string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		http:     &http.Client{Timeout: queryTimeout},
		logger:   logger.GetGlobalLogger().WithComponent("advisor"),
		cache:    make(map[string]string),
	}
}

// Available probes the endpoint once and caches the answer for the
// client's lifetime.
func (c *Client) Available(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.available != nil {
		return *c.available
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	ok := c.probe(probeCtx)
	c.available = &ok
	if !ok {
		c.logger.WithField("endpoint", c.endpoint).
			Debug("Advisory endpoint unreachable, continuing without advice")
	}
	return ok
}

func (c *Client) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Query sends a prompt and returns the model's text. Identical prompts
// are answered from the cache. Returns ErrUnavailable when the probe
// failed.
func (c *Client) Query(ctx context.Context, prompt string) (string, error) {
	if !c.Available(ctx) {
		return "", ErrUnavailable
	}

	c.mu.Lock()
	if cached, ok := c.cache[prompt]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: 0.1,
			NumPredict:  150,
		},
	})
	if err != nil {
		return "", apperrors.InternalError(apperrors.CodeUnexpectedError, "encode advisory request", err)
	}

	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(queryCtx, http.MethodPost, c.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", apperrors.NetworkError(apperrors.CodeConnectionFailed, c.endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperrors.NetworkError(apperrors.CodeTimeout, c.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apperrors.NetworkError(apperrors.CodeConnectionFailed, c.endpoint,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", apperrors.NetworkError(apperrors.CodeConnectionFailed, c.endpoint, err)
	}

	answer := strings.TrimSpace(decoded.Response)
	c.mu.Lock()
	c.cache[prompt] = answer
	c.mu.Unlock()

	return answer, nil
}

// AdvicePrompt builds the prompt used to request guidance for one anomaly
// category.
func AdvicePrompt(anomalyType, description string) string {
	return fmt.Sprintf(
		"Tu es un expert en fiscalité québécoise (TPS/TVQ). Anomalie détectée: %s. Détail: %s. "+
			"Donne une recommandation concrète en deux phrases maximum.",
		anomalyType, description)
}
