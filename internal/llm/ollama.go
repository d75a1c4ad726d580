package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"design-props-rag/internal/models"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
)

// OllamaLLM answers conversation transcripts with the Ollama chat API
type OllamaLLM struct {
	Client  *api.Client
	Model   string
	Options map[string]any
}

// NewOllamaLLM creates a new Ollama LLM client. An empty host falls back to OLLAMA_HOST.
func NewOllamaLLM(host string, model string, httpClient *http.Client) (*OllamaLLM, error) {
	hostURL := envconfig.Host()
	if host != "" {
		u, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ollama host %q: %w", host, err)
		}
		hostURL = u
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &OllamaLLM{
		Client: api.NewClient(hostURL, httpClient),
		Model:  model,
		Options: map[string]any{
			"temperature": 0.1,
			"num_predict": 1024,
		},
	}, nil
}

// GroundingPrompt wraps a property table in the instructions that seed a design conversation
func GroundingPrompt(tableText string) string {
	var promptBuilder strings.Builder

	promptBuilder.WriteString("Here is a CSV table of design elements with various properties:\n\n")
	promptBuilder.WriteString(tableText)
	promptBuilder.WriteString("\n\n")
	promptBuilder.WriteString("You are a data analyst providing answers to different queries related to this data. ")
	promptBuilder.WriteString("Refer to elements by their id. Empty cells mean the property is not available for that element. ")
	promptBuilder.WriteString("If the answer cannot be derived from the table, say so.")

	return promptBuilder.String()
}

// Complete sends the whole transcript and returns the assistant's reply
func (o *OllamaLLM) Complete(ctx context.Context, transcript []models.Message) (string, error) {
	messages := make([]api.Message, 0, len(transcript))
	for _, m := range transcript {
		messages = append(messages, api.Message{Role: string(m.Role), Content: m.Text})
	}

	stream := false
	req := api.ChatRequest{
		Model:    o.Model,
		Messages: messages,
		Stream:   &stream,
		Options:  o.Options,
	}

	var responseBuilder strings.Builder

	err := o.Client.Chat(ctx, &req, func(resp api.ChatResponse) error {
		_, err := responseBuilder.WriteString(resp.Message.Content)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}

	return responseBuilder.String(), nil
}
