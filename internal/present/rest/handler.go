package rest

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/teknolab/repute/internal/domain"
	"github.com/teknolab/repute/internal/present/rest/presenter"
	"github.com/teknolab/repute/internal/service"
	"github.com/teknolab/repute/internal/usecase"
)

type Handler struct {
	ledger     *usecase.LedgerUsecase
	reputation *usecase.ReputationUsecase
	permission *usecase.PermissionUsecase
	dispatcher *usecase.Dispatcher
	signal     *service.SignalService
}

func NewHandler(
	ledger *usecase.LedgerUsecase,
	reputation *usecase.ReputationUsecase,
	permission *usecase.PermissionUsecase,
	dispatcher *usecase.Dispatcher,
	signal *service.SignalService,
) *Handler {
	return &Handler{
		ledger:     ledger,
		reputation: reputation,
		permission: permission,
		dispatcher: dispatcher,
		signal:     signal,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/.well-known/repute", h.handleWellKnown)
	e.POST("/api/v1/actions", h.handleRecord)
	e.GET("/api/v1/users/:user/reputation", h.handleGetScore)
	e.PUT("/api/v1/users/:user/reputation", h.handleSetScore)
	e.GET("/api/v1/users/:user/reputation/daily", h.handleDailyDelta)
	e.GET("/api/v1/users/:user/permissions", h.handlePermissions)
	e.GET("/api/v1/permissions/:name/check", h.handlePermissionCheck)
	e.PUT("/api/v1/permissions/:name", h.handleUpsertPermission)
	e.POST("/api/v1/events", h.handleContentEvent)
	e.GET("/realtime", h.handleRealtime)
}

func (h *Handler) handleWellKnown(c echo.Context) error {
	return presenter.OK(c, echo.Map{
		"service": "repute",
		"version": "0.1",
		"endpoints": map[string]string{
			"repute.action.record":    "/api/v1/actions",
			"repute.reputation.get":   "/api/v1/users/{user}/reputation",
			"repute.reputation.daily": "/api/v1/users/{user}/reputation/daily",
			"repute.permission.check": "/api/v1/permissions/{name}/check",
			"repute.event.dispatch":   "/api/v1/events",
			"repute.realtime":         "/realtime",
		},
	})
}

type recordRequest struct {
	Actor  string           `json:"actor"`
	Target string           `json:"target"`
	Kind   string           `json:"kind"`
	Object domain.ObjectRef `json:"object"`
	Value  *int             `json:"value,omitempty"`
}

func (h *Handler) handleRecord(c echo.Context) error {
	ctx := c.Request().Context()

	var request recordRequest
	if err := c.Bind(&request); err != nil {
		return presenter.BadRequest(c, err)
	}
	if request.Target == "" || request.Kind == "" {
		return presenter.BadRequestMessage(c, "target and kind are required")
	}

	entry, err := h.ledger.Record(ctx, usecase.RecordInput{
		Actor:  request.Actor,
		Target: request.Target,
		Kind:   request.Kind,
		Object: request.Object,
		Value:  request.Value,
	})
	if err != nil {
		return h.recordError(c, err)
	}
	return presenter.OK(c, entry)
}

func (h *Handler) recordError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrUnknownAction):
		return presenter.NotFound(c, err.Error())
	case errors.Is(err, domain.ErrDuplicateAction):
		return presenter.Conflict(c, err)
	case errors.Is(err, domain.ErrConflict):
		return presenter.Unavailable(c, err)
	default:
		return presenter.InternalError(c, err)
	}
}

func (h *Handler) handleGetScore(c echo.Context) error {
	ctx := c.Request().Context()
	user := c.Param("user")

	score, err := h.reputation.GetScore(ctx, user)
	if err != nil {
		return presenter.InternalError(c, err)
	}
	return presenter.OK(c, echo.Map{"user": user, "score": score})
}

type setScoreRequest struct {
	Score int `json:"score"`
}

func (h *Handler) handleSetScore(c echo.Context) error {
	ctx := c.Request().Context()
	user := c.Param("user")

	var request setScoreRequest
	if err := c.Bind(&request); err != nil {
		return presenter.BadRequest(c, err)
	}

	if err := h.reputation.SetScore(ctx, user, request.Score); err != nil {
		return presenter.InternalError(c, err)
	}
	return presenter.OK(c, echo.Map{"user": user, "score": request.Score})
}

func (h *Handler) handleDailyDelta(c echo.Context) error {
	ctx := c.Request().Context()
	user := c.Param("user")

	var asOf time.Time
	if raw := c.QueryParam("asOf"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return presenter.BadRequestMessage(c, "asOf must be RFC3339")
		}
		asOf = parsed
	}

	delta, err := h.ledger.DailyDelta(ctx, user, asOf)
	if err != nil {
		return presenter.InternalError(c, err)
	}
	return presenter.OK(c, echo.Map{"user": user, "delta": delta})
}

func (h *Handler) handlePermissions(c echo.Context) error {
	ctx := c.Request().Context()
	user := c.Param("user")

	snapshot, err := h.permission.Snapshot(ctx, user)
	if err != nil {
		return presenter.InternalError(c, err)
	}
	return presenter.OK(c, echo.Map{"user": user, "permissions": snapshot})
}

func (h *Handler) handlePermissionCheck(c echo.Context) error {
	ctx := c.Request().Context()
	name := c.Param("name")
	user := c.QueryParam("user")
	if user == "" {
		return presenter.BadRequestMessage(c, "user query parameter is required")
	}

	allowed, err := h.permission.IsAllowed(ctx, user, name)
	if err != nil {
		return presenter.InternalError(c, err)
	}
	exists, err := h.permission.RuleExists(ctx, name)
	if err != nil {
		return presenter.InternalError(c, err)
	}
	return presenter.OK(c, echo.Map{
		"permission": name,
		"user":       user,
		"allowed":    allowed,
		"exists":     exists,
	})
}

type upsertPermissionRequest struct {
	Description        string `json:"description"`
	RequiredReputation int    `json:"requiredReputation"`
}

func (h *Handler) handleUpsertPermission(c echo.Context) error {
	ctx := c.Request().Context()
	name := c.Param("name")

	var request upsertPermissionRequest
	if err := c.Bind(&request); err != nil {
		return presenter.BadRequest(c, err)
	}

	rule := domain.PermissionRule{
		Name:               name,
		Description:        request.Description,
		RequiredReputation: request.RequiredReputation,
	}
	if err := h.permission.Upsert(ctx, rule); err != nil {
		return presenter.InternalError(c, err)
	}
	return presenter.OK(c, rule)
}

func (h *Handler) handleContentEvent(c echo.Context) error {
	ctx := c.Request().Context()

	var event usecase.ContentEvent
	if err := c.Bind(&event); err != nil {
		return presenter.BadRequest(c, err)
	}
	if event.ContentType == "" {
		return presenter.BadRequestMessage(c, "contentType is required")
	}

	entry, err := h.dispatcher.Dispatch(ctx, event)
	if err != nil {
		return h.recordError(c, err)
	}
	if entry == nil {
		return presenter.OK(c, echo.Map{"status": "dropped"})
	}
	return presenter.OK(c, echo.Map{"status": "ok", "entry": entry})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type realtimeRequest struct {
	Type  string   `json:"type"`
	Users []string `json:"users"`
}

func (h *Handler) handleRealtime(c echo.Context) error {
	if h.signal == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "realtime is not configured"})
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer func() {
		ws.Close()
	}()

	ctx := c.Request().Context()

	input := make(chan []string)
	defer close(input)
	output := make(chan domain.ReputationEvent)
	defer close(output)

	go h.signal.Realtime(ctx, input, output)

	quit := make(chan struct{})

	go func() {
		for {
			var req realtimeRequest
			err := ws.ReadJSON(&req)
			if err != nil {
				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}

				quit <- struct{}{}
				break
			}

			switch req.Type {
			case "listen":
				input <- req.Users
				slog.DebugContext(
					ctx, fmt.Sprintf("Socket subscribe: %s", req.Users),
					slog.String("module", "socket"),
				)
			case "h": // heartbeat
				// do nothing
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case <-ctx.Done():
			return nil
		case event := <-output:
			if err := ws.WriteJSON(event); err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
