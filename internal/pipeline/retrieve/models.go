// internal/pipeline/retrieve/models.go
package retrieve

import "context-chat/internal/models"

// Input carries the formulated query into the retrieval stage.
type Input struct {
	Query models.SearchQuery `json:"query"`
}

// Output carries a usable context set: at least one validated document.
type Output struct {
	Documents []models.RetrievedDocument `json:"documents"`
}
