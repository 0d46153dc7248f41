package server

import (
	"encoding/json"
	"io"

	"smartsprint/internal/domain"
)

// Request payloads

type LoginRequest struct {
	Username string `json:"username" required:"false"`
	Password string `json:"password" required:"false"`
}

type AssignRequest struct {
	DeveloperID *int64 `json:"developer_id,omitempty"`
}

type CompleteRequest struct {
	CompletionTime float64 `json:"completion_time"`
	Revisions      int     `json:"revisions"`
	SentimentScore float64 `json:"sentiment_score"`
}

func (r CompleteRequest) form() domain.CompletionForm {
	return domain.CompletionForm{CompletionTime: r.CompletionTime, Revisions: r.Revisions, SentimentScore: r.SentimentScore}
}

type DocumentRequest struct {
	Path string `json:"path" required:"false"`
}

// Response payloads

type SuccessResponse struct {
	Success bool `json:"success"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// ApiError is the error envelope of every non-2xx response.
type ApiError struct {
	Message    string `json:"error" example:"Ticket with ID 7 not found"`
	StatusCode int    `json:"status_code" example:"404"`
}

func jsonEncode(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}
