// internal/pipeline/formulate/models.go
package formulate

import "context-chat/internal/models"

// Input carries the raw user turn into the formulation stage.
type Input struct {
	Message string `json:"message"`
}

// Output carries the normalized retrieval query.
type Output struct {
	Query models.SearchQuery `json:"query"`
}
