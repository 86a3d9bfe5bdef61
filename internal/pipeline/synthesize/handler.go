// internal/pipeline/synthesize/handler.go
package synthesize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"context-chat/internal/models"
)

const StageName = "synthesize"

var ErrSynthesisFailed = errors.New("SYNTHESIS_FAILED")

const insufficientAnswer = "I don't have enough information to answer that question."

const systemPrompt = "You are a helpful documentation assistant. Answer the user's question based ONLY on the provided context documents."

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
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

// Execute makes one model call over the context set. The prompt embeds the
// serialized documents and the user message verbatim; the stage is only
// reached with a non-empty validated set.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	text, err := h.model.Complete(ctx, systemPrompt, h.buildPrompt(input))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		text = insufficientAnswer
	}

	h.logger.Info("answer synthesized", map[string]interface{}{
		"stage":     StageName,
		"documents": len(input.Documents),
		"length":    len(text),
	})

	return &Output{Answer: models.Answer{
		Text:      text,
		Timestamp: time.Now().UTC(),
	}}, nil
}

func (h *Handler) buildPrompt(input *Input) string {
	var parts []string

	parts = append(parts, "Context Documents:")
	contextJSON, _ := json.MarshalIndent(input.Documents, "", "  ")
	parts = append(parts, string(contextJSON))

	parts = append(parts, fmt.Sprintf("\nUser Question: %s", input.Message))

	parts = append(parts, "\nInstructions:")
	parts = append(parts, "- Use only the context documents above; do not draw on outside knowledge")
	parts = append(parts, fmt.Sprintf("- If the documents are insufficient, reply exactly: %s", insufficientAnswer))
	parts = append(parts, "- Keep the answer concise")

	parts = append(parts, "\nAnswer:")

	return strings.Join(parts, "\n")
}
