// Package ollama implements pkg/classifier's ConflictClassifier using
// Ollama's chat API with JSON-formatted output.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nickyai/memex/pkg/classifier"
	"github.com/nickyai/memex/pkg/memory"
	"github.com/nickyai/memex/pkg/utils"
)

const (
	// DefaultModel is the default chat model used for classification.
	DefaultModel = "llama3.2"

	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = "http://localhost:11434"

	// maxContentLen bounds how much of each fact lands in the prompt.
	maxContentLen = 240
)

const systemPrompt = `You review statements remembered about a single persona and find pairs that contradict each other.
Two statements contradict when they cannot both be true about the persona at the same time.
Statements about different subjects never contradict.
Respond with JSON only, in the form {"conflicts":[{"a":<index>,"b":<index>,"reason":"<short reason>"}]}.
Indexes refer to the numbered statements. Return {"conflicts":[]} when nothing conflicts.`

// Classifier wraps Ollama's chat API for conflict detection.
type Classifier struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// Config holds configuration for the Ollama classifier.
type Config struct {
	// BaseURL is the Ollama API URL. Defaults to DefaultBaseURL if empty.
	BaseURL string

	// Model is the chat model to use. Defaults to DefaultModel if empty.
	Model string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the request body for Ollama's chat API.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
}

// chatResponse is the response from Ollama's chat API.
type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// verdict is the JSON document the model is instructed to produce.
type verdict struct {
	Conflicts []struct {
		A      int    `json:"a"`
		B      int    `json:"b"`
		Reason string `json:"reason"`
	} `json:"conflicts"`
}

// NewClassifier creates a new conflict classifier using Ollama's chat API.
func NewClassifier(cfg Config) (*Classifier, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Classifier{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

// Classify inspects the facts and returns pairs judged contradictory.
func (c *Classifier) Classify(ctx context.Context, facts []*memory.Fact) ([]classifier.ConflictPair, error) {
	if len(facts) < 2 {
		return nil, nil
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: renderFacts(facts)},
		},
		Stream: false,
		Format: "json",
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	var v verdict
	if err := json.Unmarshal([]byte(chatResp.Message.Content), &v); err != nil {
		return nil, fmt.Errorf("parsing verdict: %w", err)
	}

	// The prompt numbers facts from 1 so small models don't have to echo
	// UUIDs back. Map indexes to IDs and drop anything out of range.
	pairs := make([]classifier.ConflictPair, 0, len(v.Conflicts))
	for _, conflict := range v.Conflicts {
		if conflict.A == conflict.B {
			continue
		}
		if conflict.A < 1 || conflict.A > len(facts) || conflict.B < 1 || conflict.B > len(facts) {
			continue
		}

		pairs = append(pairs, classifier.ConflictPair{
			FactAID: facts[conflict.A-1].ID,
			FactBID: facts[conflict.B-1].ID,
			Reason:  conflict.Reason,
		})
	}

	return pairs, nil
}

// Close releases resources held by the classifier.
func (c *Classifier) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}

func renderFacts(facts []*memory.Fact) string {
	var sb strings.Builder
	for i, fact := range facts {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, utils.Truncate(fact.Content, maxContentLen))
	}
	return sb.String()
}

// Ensure Classifier implements classifier.ConflictClassifier
var _ classifier.ConflictClassifier = (*Classifier)(nil)
