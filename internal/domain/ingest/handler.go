package ingest

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/labgate/labgate/internal/platform/protocol"
)

// ProtocolHintHeader selects the wire grammar for an ingested message.
// Absent or "auto" means content detection.
const ProtocolHintHeader = "X-Protocol-Hint"

const maxMessageBytes = 4 << 20

type Handler struct {
	pipeline *Pipeline
	pool     *Pool
	rules    ReflexRuleRepository
}

func NewHandler(pipeline *Pipeline, pool *Pool, rules ReflexRuleRepository) *Handler {
	return &Handler{pipeline: pipeline, pool: pool, rules: rules}
}

// RegisterRoutes registers the ingestion endpoint and reflex rule admin.
//
//	POST /ingest          — queue the message, respond 202
//	POST /ingest?sync=1   — process inline, respond with the receipt
//	POST /reflex-rules
//	GET  /reflex-rules
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/ingest", h.Ingest)
	g.POST("/reflex-rules", h.CreateReflexRule)
	g.GET("/reflex-rules", h.ListReflexRules)
}

func (h *Handler) CreateReflexRule(c echo.Context) error {
	rule := &ReflexRule{}
	if err := c.Bind(rule); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if rule.Name == "" || rule.TriggerTestID == "" || rule.OrderTestID == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "name, trigger_test_id and order_test_id are required")
	}
	switch rule.Comparator {
	case CompareGT, CompareLT, CompareEQ, CompareFlag, "":
	default:
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "invalid comparator")
	}
	if err := h.rules.Create(c.Request().Context(), rule); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "create reflex rule failed")
	}
	return c.JSON(http.StatusCreated, rule)
}

func (h *Handler) ListReflexRules(c echo.Context) error {
	rules, err := h.rules.ListActive(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "list reflex rules failed")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": rules})
}

func (h *Handler) Ingest(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxMessageBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable request body")
	}
	if len(body) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "empty message body")
	}
	if len(body) > maxMessageBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "message too large")
	}

	raw := protocol.RawMessage{
		Body:       body,
		Source:     c.RealIP(),
		ReceivedAt: time.Now(),
		Hint:       protocol.Hint(c.Request().Header.Get(ProtocolHintHeader)),
	}

	if c.QueryParam("sync") == "1" {
		receipt, err := h.pipeline.Process(c.Request().Context(), raw)
		if err != nil {
			return ingestError(err)
		}
		return c.JSON(http.StatusOK, receipt)
	}

	if err := h.pool.Dispatch(raw); err != nil {
		if errors.Is(err, ErrQueueFull) {
			return echo.NewHTTPError(http.StatusTooManyRequests, "ingestion queue full")
		}
		return echo.NewHTTPError(http.StatusServiceUnavailable, "ingestion unavailable")
	}
	return c.NoContent(http.StatusAccepted)
}

// ingestError maps pipeline failures onto HTTP statuses for sync callers.
func ingestError(err error) error {
	var pe *PersistError
	switch {
	case errors.Is(err, protocol.ErrEmptyMessage), errors.Is(err, protocol.ErrHeaderUnparsable):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &pe):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
}
