package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/repository"
	"github.com/spec-kit/triage-service/internal/suggest"
	"github.com/spec-kit/triage-service/internal/triage"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

const (
	maxSubjectLength      = 200
	ticketNumberAttempts  = 3
	responsePreviewLength = 120
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	statuses   repository.StatusCommitter
	responses  repository.TicketResponseRepository
	history    historyRecorder
	historyDB  repository.TicketHistoryRepository
	dispatcher events.Dispatcher
	routing    *RoutingService
	suggester  suggest.Suggester
	lifecycle  *triage.Lifecycle
	logger     *zap.Logger
	now        Clock
	extended   bool
	autoRoute  bool
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	Statuses     repository.StatusCommitter
	ResponseRepo repository.TicketResponseRepository
	HistoryRepo  repository.TicketHistoryRepository
	Dispatcher   events.Dispatcher
	Routing      *RoutingService
	Suggester    suggest.Suggester
	Lifecycle    *triage.Lifecycle
	Logger       *zap.Logger
	Now          Clock
	// ExtendedHeuristics enables the extended urgency heuristics when
	// scoring new tickets.
	ExtendedHeuristics bool
	// AutoRoute routes every new ticket immediately.
	AutoRoute bool
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	CustomerName  string
	CustomerEmail string
	CustomerID    string
	Subject       string
	Description   string
}

// TicketCreateResult carries the stored ticket and, when auto-routing ran
// and succeeded, the routing decision.
type TicketCreateResult struct {
	Ticket *domain.Ticket
	Route  *RouteOutcome
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	Status          *domain.TicketStatus
	Category        *domain.Category
	Priority        *domain.TicketPriority
	AssignedAgentID *string
	Limit           int
	Offset          int
}

// ResponseInput describes a message added to a ticket thread.
type ResponseInput struct {
	Message              string
	IsAgentResponse      bool
	AgentName            string
	IsAISuggested        bool
	SuggestionConfidence *float64
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	now := deps.Now.orDefault()
	lifecycle := deps.Lifecycle
	if lifecycle == nil {
		lifecycle = triage.NewLifecycle(triage.Permissive, now)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	suggester := deps.Suggester
	if suggester == nil {
		suggester = suggest.NewTemplateSuggester()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		statuses:   deps.Statuses,
		responses:  deps.ResponseRepo,
		history:    historyRecorder{repo: deps.HistoryRepo, now: now},
		historyDB:  deps.HistoryRepo,
		dispatcher: deps.Dispatcher,
		routing:    deps.Routing,
		suggester:  suggester,
		lifecycle:  lifecycle,
		logger:     logger,
		now:        now,
		extended:   deps.ExtendedHeuristics,
		autoRoute:  deps.AutoRoute,
	}
}

// CreateTicket scores, stores and optionally routes a new ticket. A ticket
// nobody can take yet is still created, left OPEN for the reroute sweep.
func (s *TicketService) CreateTicket(ctx context.Context, input TicketCreateInput) (*TicketCreateResult, error) {
	if err := validateCreateInput(&input); err != nil {
		return nil, err
	}

	now := s.now()
	ticket := &domain.Ticket{
		ID:            uuid.NewString(),
		CustomerName:  input.CustomerName,
		CustomerEmail: input.CustomerEmail,
		CustomerID:    input.CustomerID,
		Subject:       input.Subject,
		Description:   input.Description,
		Status:        domain.TicketStatusOpen,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	triage.Extract(ticket.Text(), s.extended).Apply(ticket)

	var err error
	for attempt := 0; attempt < ticketNumberAttempts; attempt++ {
		ticket.TicketNumber = generateTicketNumber(now)
		if err = s.tickets.Create(ctx, ticket); !errors.Is(err, repository.ErrDuplicate) {
			break
		}
	}
	if err != nil {
		return nil, mapError(err, "ticket", nil)
	}

	actor := CustomerActor(ticket.CustomerID)
	if err := s.history.record(ctx, ticket.ID, actor, domain.ChangeTypeCreated, nil, map[string]any{
		"status":   ticket.Status,
		"category": ticket.Category,
		"priority": ticket.Priority,
	}); err != nil {
		s.logger.Warn("record creation history failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
	publishEvent(ctx, s.dispatcher, s.logger, events.NewEvent(events.EventTicketCreated, ticket.ID, actor, now,
		events.TicketCreatedPayload{
			TicketNumber: ticket.TicketNumber,
			Subject:      ticket.Subject,
			Category:     ticket.Category,
			Sentiment:    ticket.Sentiment,
			UrgencyScore: ticket.UrgencyScore,
			Priority:     ticket.Priority,
		}))

	result := &TicketCreateResult{Ticket: ticket}
	if !s.autoRoute || s.routing == nil {
		return result, nil
	}

	outcome, err := s.routing.route(ctx, ticket, events.SystemActor, s.routing.router.AssignUnowned, true)
	switch {
	case err == nil:
		result.Ticket = outcome.Ticket
		result.Route = outcome
	case errors.Is(err, triage.ErrNoEligibleAgent):
		// stays OPEN
	default:
		s.logger.Warn("auto-route failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
	return result, nil
}

// GetTicket fetches one ticket.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

// ListTickets returns a page of tickets, newest first.
func (s *TicketService) ListTickets(ctx context.Context, filter TicketListFilter) ([]domain.Ticket, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": *filter.Status})
	}
	if filter.Category != nil && !filter.Category.Valid() {
		return nil, apperrors.NewValidationError("unknown category", map[string]any{"category": *filter.Category})
	}
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{
		Status:          filter.Status,
		Category:        filter.Category,
		Priority:        filter.Priority,
		AssignedAgentID: filter.AssignedAgentID,
		Limit:           filter.Limit,
		Offset:          filter.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// UpdateStatus moves a ticket through the lifecycle. The transition is
// applied to the locked row, and the first entry into RESOLVED folds the
// resolution time into the assigned agent's stats in the same commit.
func (s *TicketService) UpdateStatus(ctx context.Context, ticketID string, target domain.TicketStatus, actor events.Actor) (*domain.Ticket, error) {
	details := map[string]any{"ticket_id": ticketID}
	outcome, err := s.statuses.CommitStatus(ctx, ticketID, func(ticket *domain.Ticket) error {
		return s.lifecycle.Transition(ticket, target)
	})
	if err != nil {
		return nil, mapError(err, "ticket", details)
	}
	ticket := outcome.Ticket
	oldStatus := outcome.Previous.Status

	if oldStatus != ticket.Status {
		if err := s.history.statusChange(ctx, ticket.ID, actor, oldStatus, ticket.Status); err != nil {
			s.logger.Warn("record status history failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
	}
	if agent := outcome.Agent; agent != nil {
		s.logger.Info("resolution recorded",
			zap.String("ticket_id", ticket.ID),
			zap.String("agent_id", agent.ID),
			zap.Int("total_handled", agent.TotalHandled),
			zap.Float64("avg_resolution_time_hours", agent.AvgResolutionTimeHours),
		)
	}
	publishEvent(ctx, s.dispatcher, s.logger, events.NewEvent(events.EventTicketStatusChanged, ticket.ID, actor, s.now(),
		events.TicketStatusChangedPayload{OldStatus: oldStatus, NewStatus: ticket.Status}))
	return ticket, nil
}

// AddResponse appends a message to the ticket thread.
func (s *TicketService) AddResponse(ctx context.Context, ticketID string, input ResponseInput, actor events.Actor) (*domain.TicketResponse, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, apperrors.NewValidationError("message is required", nil)
	}
	if c := input.SuggestionConfidence; c != nil && (*c < 0 || *c > 1) {
		return nil, apperrors.NewValidationError("suggestion confidence must be within [0,1]", nil)
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}

	resp := &domain.TicketResponse{
		ID:                   uuid.NewString(),
		TicketID:             ticket.ID,
		Message:              message,
		IsAgentResponse:      input.IsAgentResponse,
		AgentName:            strings.TrimSpace(input.AgentName),
		IsAISuggested:        input.IsAISuggested,
		SuggestionConfidence: input.SuggestionConfidence,
		CreatedAt:            s.now(),
	}
	if err := s.responses.Create(ctx, resp); err != nil {
		return nil, apperrors.MapError(err)
	}
	publishEvent(ctx, s.dispatcher, s.logger, events.NewEvent(events.EventTicketResponseAdded, ticket.ID, actor, resp.CreatedAt,
		events.TicketResponseAddedPayload{
			ResponseID:      resp.ID,
			IsAgentResponse: resp.IsAgentResponse,
			IsAISuggested:   resp.IsAISuggested,
			BodyPreview:     stringPreview(resp.Message, responsePreviewLength),
		}))
	return resp, nil
}

// ListResponses returns the ticket thread, oldest first.
func (s *TicketService) ListResponses(ctx context.Context, ticketID string) ([]domain.TicketResponse, error) {
	if _, err := s.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	responses, err := s.responses.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return responses, nil
}

// ListHistory returns the audit trail, oldest first.
func (s *TicketService) ListHistory(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	if _, err := s.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	if s.historyDB == nil {
		return []domain.TicketHistory{}, nil
	}
	history, err := s.historyDB.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return history, nil
}

// SuggestResponse proposes a reply for the ticket using its stored category.
func (s *TicketService) SuggestResponse(ctx context.Context, ticketID string) (suggest.Suggestion, error) {
	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return suggest.Suggestion{}, err
	}
	suggestion, err := s.suggester.Suggest(ctx, ticket.Text(), ticket.Category)
	if err != nil {
		return suggest.Suggestion{}, apperrors.MapError(err)
	}
	return suggestion, nil
}

func validateCreateInput(input *TicketCreateInput) error {
	input.CustomerName = strings.TrimSpace(input.CustomerName)
	input.CustomerEmail = strings.TrimSpace(input.CustomerEmail)
	input.CustomerID = strings.TrimSpace(input.CustomerID)
	input.Subject = strings.TrimSpace(input.Subject)
	input.Description = strings.TrimSpace(input.Description)

	invalid := map[string]any{}
	if input.Subject == "" {
		invalid["subject"] = "required"
	} else if len([]rune(input.Subject)) > maxSubjectLength {
		invalid["subject"] = fmt.Sprintf("at most %d characters", maxSubjectLength)
	}
	if input.Description == "" {
		invalid["description"] = "required"
	}
	if input.CustomerEmail != "" {
		if _, err := mail.ParseAddress(input.CustomerEmail); err != nil {
			invalid["customer_email"] = "invalid address"
		}
	}
	if len(invalid) > 0 {
		return apperrors.NewValidationError("invalid ticket", invalid)
	}
	return nil
}

// generateTicketNumber renders TKT-YYYYMMDD-XXXXXX with six random
// upper-case hex characters.
func generateTicketNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("TKT-%s-%s", now.Format("20060102"), suffix)
}
