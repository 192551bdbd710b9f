package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/api/http/handlers"
	"github.com/spec-kit/triage-service/internal/auth"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/observability"
	"github.com/spec-kit/triage-service/internal/repository/memstore"
	"github.com/spec-kit/triage-service/internal/service"
	"github.com/spec-kit/triage-service/internal/triage"
)

type testServer struct {
	app        *fiber.App
	agentToken string
	adminToken string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memstore.New()
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	logger := zap.NewNop()
	lifecycle := triage.NewLifecycle(triage.Strict, nil)

	routing := service.NewRoutingService(service.RoutingDependencies{
		TicketRepo:  store.Tickets(),
		AgentRepo:   store.Agents(),
		Assignments: store.Assignments(),
		HistoryRepo: store.History(),
		Dispatcher:  dispatcher,
		Lifecycle:   lifecycle,
		Metrics:     metrics,
		Logger:      logger,
	})
	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   store.Tickets(),
		Statuses:     store.Statuses(),
		ResponseRepo: store.Responses(),
		HistoryRepo:  store.History(),
		Dispatcher:   dispatcher,
		Routing:      routing,
		Lifecycle:    lifecycle,
		Logger:       logger,
		AutoRoute:    true,
	})
	agents := service.NewAgentService(service.AgentDependencies{AgentRepo: store.Agents(), TicketRepo: store.Tickets()})
	analytics := service.NewAnalyticsService(service.AnalyticsDependencies{TicketRepo: store.Tickets(), Logger: logger})

	tokens := auth.NewTokenManager("test-secret", 5)
	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("triage-service", "test", nil, nil),
		Tickets:        handlers.NewTicketsHandler(tickets, routing),
		Agents:         handlers.NewAgentsHandler(agents),
		Triage:         handlers.NewTriageHandler(nil, false),
		Analytics:      handlers.NewAnalyticsHandler(analytics, routing, metrics),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	agentToken, _, err := tokens.GenerateToken("agent-1", domain.AgentRoleAgent)
	require.NoError(t, err)
	adminToken, _, err := tokens.GenerateToken("admin-1", domain.AgentRoleAdmin)
	require.NoError(t, err)
	return &testServer{app: app, agentToken: agentToken, adminToken: adminToken}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestHealthAndUnknownRoute(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, fiber.MethodGet, "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = s.do(t, fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, env := s.do(t, fiber.MethodGet, "/nope", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestTicketFlow(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, fiber.MethodPost, "/api/v1/agents", s.adminToken, map[string]any{
		"name": "Robin", "email": "robin@support.example", "expertise": []string{"billing"}, "max_tickets": 2,
	})
	require.Equal(t, fiber.StatusCreated, status)
	agent := decode[map[string]any](t, env)
	agentID := agent["id"].(string)

	status, env = s.do(t, fiber.MethodPost, "/api/v1/tickets", "", map[string]any{
		"customer_name": "Casey", "customer_email": "casey@example.com",
		"subject": "Refund", "description": "Please refund my last payment",
	})
	require.Equal(t, fiber.StatusCreated, status)
	created := decode[struct {
		Ticket struct {
			ID         string  `json:"id"`
			Status     string  `json:"status"`
			Category   string  `json:"category"`
			AssignedTo *string `json:"assigned_to"`
		} `json:"ticket"`
		Routing *struct {
			AgentID string `json:"agent_id"`
		} `json:"routing"`
	}](t, env)
	assert.Equal(t, "IN_PROGRESS", created.Ticket.Status)
	assert.Equal(t, "billing", created.Ticket.Category)
	require.NotNil(t, created.Routing)
	assert.Equal(t, agentID, created.Routing.AgentID)
	ticketPath := "/api/v1/tickets/" + created.Ticket.ID

	status, env = s.do(t, fiber.MethodGet, ticketPath, "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	status, _ = s.do(t, fiber.MethodPatch, ticketPath+"/status", s.agentToken, map[string]any{"status": "closed"})
	require.Equal(t, fiber.StatusOK, status)

	status, env = s.do(t, fiber.MethodPatch, ticketPath+"/status", s.agentToken, map[string]any{"status": "OPEN"})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)

	status, env = s.do(t, fiber.MethodGet, ticketPath+"/history", s.agentToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	history := decode[[]map[string]any](t, env)
	assert.Len(t, history, 4)

	status, env = s.do(t, fiber.MethodGet, "/api/v1/agents/"+agentID+"/stats", s.agentToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	stats := decode[service.AgentStats](t, env)
	assert.Equal(t, 0, stats.Capacity.CurrentTickets)
	assert.Equal(t, 2, stats.Capacity.AvailableSlots)

	status, env = s.do(t, fiber.MethodGet, "/api/v1/analytics/routing", s.agentToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	metrics := decode[triage.RoutingMetrics](t, env)
	assert.Equal(t, 1, metrics.TotalAssigned)
}

func TestCreateTicketValidation(t *testing.T) {
	s := newTestServer(t)
	status, env := s.do(t, fiber.MethodPost, "/api/v1/tickets", "", map[string]any{"subject": "", "description": "x"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	assert.Contains(t, env.Error.Details, "subject")
}

func TestAgentWritesNeedAdmin(t *testing.T) {
	s := newTestServer(t)
	body := map[string]any{"name": "Sam", "email": "sam@support.example"}

	status, env := s.do(t, fiber.MethodPost, "/api/v1/agents", s.agentToken, body)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	status, _ = s.do(t, fiber.MethodPost, "/api/v1/agents", s.adminToken, body)
	require.Equal(t, fiber.StatusCreated, status)
	status, env = s.do(t, fiber.MethodPost, "/api/v1/agents", s.adminToken, body)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "CONFLICT", env.Error.Code)

	status, env = s.do(t, fiber.MethodGet, "/api/v1/agents?available=maybe", s.agentToken, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
}

func TestAssignWithoutCapacity(t *testing.T) {
	s := newTestServer(t)
	status, env := s.do(t, fiber.MethodPost, "/api/v1/agents", s.adminToken, map[string]any{
		"name": "Full", "email": "full@support.example", "max_tickets": 0,
	})
	require.Equal(t, fiber.StatusCreated, status)
	agentID := decode[map[string]any](t, env)["id"].(string)

	status, env = s.do(t, fiber.MethodPost, "/api/v1/tickets", "", map[string]any{"subject": "Hi", "description": "question"})
	require.Equal(t, fiber.StatusCreated, status)
	ticket := decode[struct {
		Ticket struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"ticket"`
	}](t, env).Ticket
	assert.Equal(t, "OPEN", ticket.Status)

	status, env = s.do(t, fiber.MethodPost, "/api/v1/tickets/"+ticket.ID+"/assign", s.agentToken, map[string]any{"agent_id": agentID})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "AGENT_UNAVAILABLE", env.Error.Code)

	status, env = s.do(t, fiber.MethodPost, "/api/v1/tickets/"+ticket.ID+"/route", s.agentToken, nil)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "NO_ELIGIBLE_AGENT", env.Error.Code)

	status, env = s.do(t, fiber.MethodPost, "/api/v1/routing/sweep", s.adminToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, service.RerouteSummary{Scanned: 1, Unroutable: 1}, decode[service.RerouteSummary](t, env))
}

func TestTriageEndpoints(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, fiber.MethodPost, "/api/v1/triage/classify", s.agentToken, map[string]any{"text": "my invoice shows a double charge"})
	require.Equal(t, fiber.StatusOK, status)
	classification := decode[struct {
		Category       string             `json:"category"`
		Confidence     float64            `json:"confidence"`
		AllPredictions map[string]float64 `json:"all_predictions"`
	}](t, env)
	assert.Equal(t, "billing", classification.Category)
	assert.InDelta(t, 0.4, classification.Confidence, 1e-9)
	assert.Len(t, classification.AllPredictions, 6)

	status, env = s.do(t, fiber.MethodPost, "/api/v1/triage/sentiment", s.agentToken, map[string]any{
		"text": "EVERYTHING FAILED AGAIN!!!", "extended": true,
	})
	require.Equal(t, fiber.StatusOK, status)
	sentiment := decode[map[string]any](t, env)
	assert.Equal(t, "neutral", sentiment["sentiment"])
	assert.InDelta(t, 0.85, sentiment["urgency_score"], 1e-9)
	assert.Equal(t, "urgent", sentiment["priority"])

	status, env = s.do(t, fiber.MethodPost, "/api/v1/triage/suggest-response", s.agentToken, map[string]any{"text": "  "})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
}

func TestMetricsEndpointCountsRequests(t *testing.T) {
	s := newTestServer(t)
	s.do(t, fiber.MethodGet, "/health/live", "", nil)

	req := httptest.NewRequest(fiber.MethodGet, "/metrics", nil)
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var snapshot observability.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))
	assert.Equal(t, int64(1), snapshot.Requests["/health/live|GET|200"])
}
