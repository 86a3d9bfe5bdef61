// internal/pipeline/retrieve/handler.go
package retrieve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/xeipuuv/gojsonschema"

	"context-chat/internal/models"
)

const StageName = "retrieve"

var (
	ErrToolUnavailable   = errors.New("TOOL_UNAVAILABLE")
	ErrNoRelevantContext = errors.New("NO_RELEVANT_CONTEXT")
)

// documentSchema is the acceptance contract for one retrieved record.
const documentSchema = `{
	"type": "object",
	"required": ["title", "content"],
	"properties": {
		"title": {"type": "string", "minLength": 1},
		"content": {"type": "string", "minLength": 1},
		"source": {"type": "string"},
		"relevanceScore": {"type": "number", "minimum": 0, "maximum": 1}
	}
}`

var documentSchemaLoader = gojsonschema.NewStringLoader(documentSchema)

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// ToolCaller is the transport capability this stage needs.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, arguments map[string]interface{}) (string, error)
}

type Handler struct {
	config *Config
	tool   ToolCaller
	logger Logger
}

func NewHandler(config *Config, tool ToolCaller, log Logger) *Handler {
	return &Handler{
		config: config,
		tool:   tool,
		logger: log,
	}
}

// Execute runs one query against the knowledge tool and parses its raw text
// strictly. Any transport failure is ErrToolUnavailable; a response that
// yields no validated document is ErrNoRelevantContext. There is no fallback
// to unconditioned generation.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	raw, err := h.tool.CallTool(ctx, h.config.ToolName, map[string]interface{}{
		"query": input.Query.Text,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrToolUnavailable, err)
	}

	documents, err := parseDocuments(raw)
	if err != nil {
		return nil, err
	}

	valid := validateDocuments(documents, h.logger)
	if len(valid) == 0 {
		return nil, fmt.Errorf("%w: no document passed validation", ErrNoRelevantContext)
	}

	sortByRelevance(valid)

	h.logger.Info("context set retrieved", map[string]interface{}{
		"stage":     StageName,
		"query":     input.Query.Text,
		"documents": len(valid),
		"dropped":   len(documents) - len(valid),
	})

	return &Output{Documents: valid}, nil
}

// parseDocuments interprets the tool's raw text. A JSON list becomes the
// candidate set; any other single JSON value is wrapped as a one-element set.
func parseDocuments(raw string) ([]json.RawMessage, error) {
	var list []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		if len(list) == 0 {
			return nil, fmt.Errorf("%w: tool returned an empty result list", ErrNoRelevantContext)
		}
		return list, nil
	}

	var single json.RawMessage
	if err := json.Unmarshal([]byte(raw), &single); err != nil {
		return nil, fmt.Errorf("%w: tool response is not valid JSON", ErrNoRelevantContext)
	}
	return []json.RawMessage{single}, nil
}

// validateDocuments checks each candidate record against the document schema
// and drops the ones that fail.
func validateDocuments(candidates []json.RawMessage, log Logger) []models.RetrievedDocument {
	valid := make([]models.RetrievedDocument, 0, len(candidates))
	for i, candidate := range candidates {
		result, err := gojsonschema.Validate(documentSchemaLoader, gojsonschema.NewBytesLoader(candidate))
		if err != nil || !result.Valid() {
			log.Warn("dropping invalid document record", map[string]interface{}{
				"index": i,
			})
			continue
		}

		var doc models.RetrievedDocument
		if err := json.Unmarshal(candidate, &doc); err != nil {
			log.Warn("dropping undecodable document record", map[string]interface{}{
				"index": i,
			})
			continue
		}
		valid = append(valid, doc)
	}
	return valid
}

// sortByRelevance orders documents by descending score, but only when every
// document carries one. A partially scored set keeps the tool's order.
func sortByRelevance(docs []models.RetrievedDocument) {
	for _, doc := range docs {
		if doc.RelevanceScore == nil {
			return
		}
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return *docs[i].RelevanceScore > *docs[j].RelevanceScore
	})
}
