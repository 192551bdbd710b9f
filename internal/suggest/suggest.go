// Package suggest produces reply suggestions for tickets. The default
// strategy returns a canned reply per category; a similarity-backed
// strategy can replace it behind the same interface.
package suggest

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/triage"
)

// Suggestion is a proposed reply.
type Suggestion struct {
	Text       string          `json:"suggested_text"`
	Confidence float64         `json:"confidence"`
	Sources    []string        `json:"source_tickets"`
	Reasoning  string          `json:"reasoning"`
	Category   domain.Category `json:"category"`
}

// Suggester proposes a reply for ticket text. An empty category asks the
// strategy to classify the text itself.
type Suggester interface {
	Suggest(ctx context.Context, text string, category domain.Category) (Suggestion, error)
}

const defaultConfidence = 0.8

var defaultTemplates = map[domain.Category]string{
	domain.CategoryAccount:        "Thank you for contacting support. I can help you with your account issue. Please verify your email address and I'll send you a password reset link.",
	domain.CategoryBilling:        "I apologize for the billing concern. I've reviewed your account and will process a refund within 3-5 business days.",
	domain.CategoryTechnical:      "Thank you for reporting this issue. Our technical team is investigating. Please try clearing your cache and let us know if the problem persists.",
	domain.CategoryComplaint:      "I sincerely apologize for your experience. Your feedback is important to us. I'd like to understand the issue better. Could you provide more details?",
	domain.CategoryFeatureRequest: "Thank you for your suggestion! I've forwarded your feature request to our product team. We appreciate customer feedback.",
	domain.CategoryGeneral:        "Thank you for reaching out. I'm here to help. Could you provide more details about your inquiry?",
}

// TemplateSuggester answers with a fixed reply per category.
type TemplateSuggester struct {
	templates  map[domain.Category]string
	confidence float64
}

// NewTemplateSuggester returns a suggester over the built-in templates.
func NewTemplateSuggester() *TemplateSuggester {
	templates := make(map[domain.Category]string, len(defaultTemplates))
	for k, v := range defaultTemplates {
		templates[k] = v
	}
	return &TemplateSuggester{templates: templates, confidence: defaultConfidence}
}

// Suggest implements Suggester. Unknown categories fall back to general.
func (s *TemplateSuggester) Suggest(ctx context.Context, text string, category domain.Category) (Suggestion, error) {
	if category == "" {
		category = triage.ClassifySignal(text).Category
	}
	reply, ok := s.templates[category]
	if !ok {
		reply = s.templates[domain.CategoryGeneral]
	}
	return Suggestion{
		Text:       reply,
		Confidence: s.confidence,
		Sources:    []string{},
		Reasoning:  fmt.Sprintf("Based on category: %s", category),
		Category:   category,
	}, nil
}

type templateFile struct {
	Confidence *float64          `yaml:"confidence"`
	Templates  map[string]string `yaml:"templates"`
}

// LoadTemplates reads overrides from a YAML file on top of the built-in
// templates. An empty path returns the defaults.
func LoadTemplates(path string) (*TemplateSuggester, error) {
	s := NewTemplateSuggester()
	if path == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	if err := s.apply(raw); err != nil {
		return nil, fmt.Errorf("templates %s: %w", path, err)
	}
	return s, nil
}

func (s *TemplateSuggester) apply(raw []byte) error {
	var file templateFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return err
	}
	if file.Confidence != nil {
		if *file.Confidence < 0 || *file.Confidence > 1 {
			return fmt.Errorf("confidence %.2f outside [0,1]", *file.Confidence)
		}
		s.confidence = *file.Confidence
	}
	for key, reply := range file.Templates {
		category := domain.Category(key)
		if !category.Valid() {
			return fmt.Errorf("unknown category %q", key)
		}
		if reply == "" {
			return fmt.Errorf("empty template for %q", key)
		}
		s.templates[category] = reply
	}
	return nil
}
