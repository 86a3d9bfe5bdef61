// internal/pipeline/synthesize/models.go
package synthesize

import "context-chat/internal/models"

// Input carries the user message and the validated context set.
type Input struct {
	Message   string                     `json:"message"`
	Documents []models.RetrievedDocument `json:"documents"`
}

// Output carries the synthesized answer.
type Output struct {
	Answer models.Answer `json:"answer"`
}
