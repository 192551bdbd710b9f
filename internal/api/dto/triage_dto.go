package dto

import "github.com/spec-kit/triage-service/internal/domain"

// TextRequest carries free text for the ad-hoc signal endpoints.
type TextRequest struct {
	Text     string          `json:"text"`
	Extended *bool           `json:"extended,omitempty"`
	Category domain.Category `json:"category,omitempty"`
}

// ClassificationResponse reports the category decision.
type ClassificationResponse struct {
	Category       domain.Category             `json:"category"`
	Confidence     float64                     `json:"confidence"`
	AllPredictions map[domain.Category]float64 `json:"all_predictions"`
}

// SentimentResponse reports sentiment, urgency and the derived priority.
type SentimentResponse struct {
	Sentiment    domain.Sentiment      `json:"sentiment"`
	Score        float64               `json:"score"`
	UrgencyScore float64               `json:"urgency_score"`
	Priority     domain.TicketPriority `json:"priority"`
}
