// internal/pipeline/formulate/handler.go
package formulate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"context-chat/internal/models"
)

const StageName = "formulate"

var ErrEmptyQuery = errors.New("EMPTY_QUERY")

const systemPrompt = `You are a search query formulator. Rewrite the user's message as one short search query suitable for a documentation search tool.
Rules:
- Output the query text only, nothing else.
- No explanations, no prefixes, no quotation marks.
- Keep the key technical terms from the message.`

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// ModelClient is the single model capability this stage needs.
type ModelClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

type Handler struct {
	config *Config
	model  ModelClient
	logger Logger
}

func NewHandler(config *Config, model ModelClient, log Logger) *Handler {
	return &Handler{
		config: config,
		model:  model,
		logger: log,
	}
}

// Execute turns one user message into a retrieval query. The model gets one
// attempt; any outcome that yields no usable query is ErrEmptyQuery.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.Message) == "" {
		return nil, fmt.Errorf("%w: blank message", ErrEmptyQuery)
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	raw, err := h.model.Complete(ctx, systemPrompt, input.Message)
	if err != nil {
		// A failed formulation call and an empty formulation are the same
		// outcome for the caller: no query to retrieve with.
		return nil, fmt.Errorf("%w: model call: %v", ErrEmptyQuery, err)
	}

	query := normalize(raw)
	if query == "" {
		return nil, fmt.Errorf("%w: model returned no query text", ErrEmptyQuery)
	}

	h.logger.Info("query formulated", map[string]interface{}{
		"stage": StageName,
		"query": query,
	})

	return &Output{Query: models.SearchQuery{Text: query}}, nil
}

// normalize trims whitespace and strips at most one layer of matching quotes.
func normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'') {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}
