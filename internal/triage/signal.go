// Package triage holds the ticket decision engine: signal extraction,
// priority derivation, the lifecycle state machine, agent routing and the
// routing metrics aggregate. Everything here is pure and safe for concurrent
// use; storage and transport live elsewhere.
package triage

import (
	"math"
	"strings"
	"unicode"

	"github.com/spec-kit/triage-service/internal/domain"
)

const (
	// confidenceSensitivity is the number of distinct keyword hits that
	// saturates classification confidence.
	confidenceSensitivity = 5.0
	defaultConfidence     = 0.5

	baseUrgency            = 0.3
	negativeUrgencyBump    = 0.2
	exclamationUrgencyBump = 0.1
	capsUrgencyBump        = 0.15
	exclamationThreshold   = 2
	capsRatioThreshold     = 0.3

	negativeSentimentScore = 0.3
	positiveSentimentScore = 0.8
	neutralSentimentScore  = 0.5
)

type categoryKeywords struct {
	category domain.Category
	keywords []string
}

// categoryTable is ordered. ClassifySignal breaks score ties in favour of the
// earlier row, so the order is part of the contract.
var categoryTable = []categoryKeywords{
	{domain.CategoryBilling, []string{"payment", "charge", "invoice", "bill", "refund", "subscription"}},
	{domain.CategoryTechnical, []string{"error", "bug", "not working", "broken", "crash", "issue", "problem"}},
	{domain.CategoryAccount, []string{"password", "login", "access", "account", "sign in", "username"}},
	{domain.CategoryComplaint, []string{"disappointed", "upset", "angry", "terrible", "worst", "complaint"}},
	{domain.CategoryFeatureRequest, []string{"feature", "would like", "suggestion", "add", "implement", "wish"}},
	{domain.CategoryGeneral, []string{"question", "help", "how to", "what", "when", "where"}},
}

// Categories returns the six categories in canonical tie-break order.
func Categories() []domain.Category {
	out := make([]domain.Category, len(categoryTable))
	for i, row := range categoryTable {
		out[i] = row.category
	}
	return out
}

var (
	negativeWords = []string{"angry", "terrible", "worst", "disappointed", "frustrated", "broken"}
	positiveWords = []string{"great", "good", "thanks", "appreciate", "helpful"}
)

type urgencyKeyword struct {
	keyword string
	weight  float64
}

var urgencyTable = []urgencyKeyword{
	{"urgent", 1.0},
	{"asap", 0.9},
	{"immediately", 0.9},
	{"critical", 0.95},
	{"emergency", 1.0},
	{"broken", 0.7},
	{"not working", 0.7},
	{"down", 0.8},
}

// extendedUrgencyTable is only consulted with extended heuristics enabled.
var extendedUrgencyTable = []urgencyKeyword{
	{"error", 0.6},
	{"failed", 0.6},
	{"cannot", 0.5},
	{"unable", 0.5},
}

// Classification is the outcome of ClassifySignal.
type Classification struct {
	Category     domain.Category
	Confidence   float64
	Distribution map[domain.Category]float64
}

// SentimentResult is the outcome of ScoreSentiment.
type SentimentResult struct {
	Label domain.Sentiment
	Score float64
}

// SentimentUrgency combines sentiment and urgency for one text.
type SentimentUrgency struct {
	Sentiment      domain.Sentiment
	SentimentScore float64
	UrgencyScore   float64
}

// Signals is everything the extractor derives for a new ticket.
type Signals struct {
	Classification
	SentimentUrgency
	Priority domain.TicketPriority
}

// ClassifySignal scores text against the category keyword table. It never
// fails: text without any keyword falls back to general with confidence 0.5.
func ClassifySignal(text string) Classification {
	lower := strings.ToLower(text)

	scores := make([]int, len(categoryTable))
	total := 0
	best := 0
	for i, row := range categoryTable {
		scores[i] = countDistinct(lower, row.keywords)
		total += scores[i]
		if scores[i] > scores[best] {
			best = i
		}
	}

	result := Classification{
		Category:     domain.CategoryGeneral,
		Confidence:   defaultConfidence,
		Distribution: make(map[domain.Category]float64, len(categoryTable)),
	}
	if scores[best] > 0 {
		result.Category = categoryTable[best].category
		result.Confidence = math.Min(float64(scores[best])/confidenceSensitivity, 1.0)
	}

	denominator := float64(total)
	if total == 0 {
		denominator = 1
	}
	for i, row := range categoryTable {
		result.Distribution[row.category] = float64(scores[i]) / denominator
	}
	return result
}

// ScoreSentiment labels text by comparing negative and positive keyword hits.
func ScoreSentiment(text string) SentimentResult {
	lower := strings.ToLower(text)
	neg := countDistinct(lower, negativeWords)
	pos := countDistinct(lower, positiveWords)
	switch {
	case neg > pos:
		return SentimentResult{Label: domain.SentimentNegative, Score: negativeSentimentScore}
	case pos > neg:
		return SentimentResult{Label: domain.SentimentPositive, Score: positiveSentimentScore}
	default:
		return SentimentResult{Label: domain.SentimentNeutral, Score: neutralSentimentScore}
	}
}

// ScoreUrgency estimates time sensitivity in [0,1]. The extended flag adds
// the error-family keywords plus exclamation and upper-case heuristics.
func ScoreUrgency(text string, sentiment domain.Sentiment, extended bool) float64 {
	lower := strings.ToLower(text)

	urgency := baseUrgency
	urgency = maxKeywordWeight(lower, urgencyTable, urgency)
	if extended {
		urgency = maxKeywordWeight(lower, extendedUrgencyTable, urgency)
	}

	if sentiment == domain.SentimentNegative {
		urgency = clampUnit(urgency + negativeUrgencyBump)
	}

	if extended {
		if strings.Count(text, "!") > exclamationThreshold {
			urgency = clampUnit(urgency + exclamationUrgencyBump)
		}
		if upperRatio(text) > capsRatioThreshold {
			urgency = clampUnit(urgency + capsUrgencyBump)
		}
	}
	return round2(urgency)
}

// ScoreSentimentUrgency runs sentiment scoring and feeds the label into
// urgency scoring.
func ScoreSentimentUrgency(text string, extended bool) SentimentUrgency {
	sentiment := ScoreSentiment(text)
	return SentimentUrgency{
		Sentiment:      sentiment.Label,
		SentimentScore: sentiment.Score,
		UrgencyScore:   ScoreUrgency(text, sentiment.Label, extended),
	}
}

// Extract derives every signal for a ticket text, including priority.
func Extract(text string, extended bool) Signals {
	su := ScoreSentimentUrgency(text, extended)
	return Signals{
		Classification:   ClassifySignal(text),
		SentimentUrgency: su,
		Priority:         DerivePriority(su.UrgencyScore),
	}
}

// Apply copies the signals onto a ticket.
func (s Signals) Apply(t *domain.Ticket) {
	t.Category = s.Category
	t.CategoryConfidence = s.Confidence
	t.Sentiment = s.Sentiment
	t.SentimentScore = s.SentimentScore
	t.UrgencyScore = s.UrgencyScore
	t.Priority = s.Priority
}

func countDistinct(lower string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}

func maxKeywordWeight(lower string, table []urgencyKeyword, floor float64) float64 {
	for _, row := range table {
		if row.weight > floor && strings.Contains(lower, row.keyword) {
			floor = row.weight
		}
	}
	return floor
}

func upperRatio(text string) float64 {
	total, upper := 0, 0
	for _, r := range text {
		total++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(upper) / float64(total)
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(v, 1.0))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
