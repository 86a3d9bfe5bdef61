// internal/models/chat.go
package models

import "time"

// ChatRequest is one user turn entering the pipeline.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
}

// SearchQuery is the formulated retrieval query derived from a ChatRequest.
type SearchQuery struct {
	Text string `json:"text"`
}

// RetrievedDocument is one record returned by the knowledge tool.
// RelevanceScore is optional; when present it must be in [0, 1].
type RetrievedDocument struct {
	Title          string   `json:"title"`
	Content        string   `json:"content"`
	Source         string   `json:"source,omitempty"`
	RelevanceScore *float64 `json:"relevanceScore,omitempty"`
}

// Answer is the synthesized response for a completed run.
type Answer struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationRecord is the persisted form of one completed exchange.
type ConversationRecord struct {
	ConversationID string    `json:"conversationId"`
	Message        string    `json:"message"`
	Answer         string    `json:"answer"`
	Timestamp      time.Time `json:"timestamp"`
}
