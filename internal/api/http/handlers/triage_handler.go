package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-service/internal/api/dto"
	"github.com/spec-kit/triage-service/internal/suggest"
	"github.com/spec-kit/triage-service/internal/triage"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

// TriageHandler exposes the signal extractor over free text, without
// creating a ticket.
type TriageHandler struct {
	suggester suggest.Suggester
	// extended is the default when a request does not say.
	extended bool
}

// NewTriageHandler constructs handler.
func NewTriageHandler(suggester suggest.Suggester, extendedByDefault bool) *TriageHandler {
	if suggester == nil {
		suggester = suggest.NewTemplateSuggester()
	}
	return &TriageHandler{suggester: suggester, extended: extendedByDefault}
}

func parseText(c *fiber.Ctx) (dto.TextRequest, error) {
	var req dto.TextRequest
	if err := c.BodyParser(&req); err != nil {
		return req, apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Text) == "" {
		return req, apperrors.NewValidationError("text required", nil)
	}
	return req, nil
}

// Classify POST /triage/classify.
func (h *TriageHandler) Classify(c *fiber.Ctx) error {
	req, err := parseText(c)
	if err != nil {
		return err
	}
	result := triage.ClassifySignal(req.Text)
	return c.JSON(fiber.Map{"data": dto.ClassificationResponse{
		Category:       result.Category,
		Confidence:     result.Confidence,
		AllPredictions: result.Distribution,
	}})
}

// Sentiment POST /triage/sentiment.
func (h *TriageHandler) Sentiment(c *fiber.Ctx) error {
	req, err := parseText(c)
	if err != nil {
		return err
	}
	extended := h.extended
	if req.Extended != nil {
		extended = *req.Extended
	}
	result := triage.ScoreSentimentUrgency(req.Text, extended)
	return c.JSON(fiber.Map{"data": dto.SentimentResponse{
		Sentiment:    result.Sentiment,
		Score:        result.SentimentScore,
		UrgencyScore: result.UrgencyScore,
		Priority:     triage.DerivePriority(result.UrgencyScore),
	}})
}

// SuggestResponse POST /triage/suggest-response.
func (h *TriageHandler) SuggestResponse(c *fiber.Ctx) error {
	req, err := parseText(c)
	if err != nil {
		return err
	}
	suggestion, err := h.suggester.Suggest(c.UserContext(), req.Text, req.Category)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": suggestion})
}
