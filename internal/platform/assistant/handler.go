package assistant

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/vetclinic/vetclinic/internal/platform/auth"
)

// KeyHeader carries the owner's own completion API key.
const KeyHeader = "X-Assistant-Key"

const maxMessageLen = 4000

// limiterIdleTTL outlasts a full bucket refill, so dropping an idle
// limiter never grants extra questions.
const limiterIdleTTL = 10 * time.Minute

type Asker interface {
	Ask(ctx context.Context, apiKey, message string) (string, error)
}

type Handler struct {
	client Asker
	logger zerolog.Logger
	rpm    int

	mu       sync.Mutex
	limiters map[string]*userLimiter
	lastGC   time.Time
	now      func() time.Time
}

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewHandler allows each user rpm questions per minute; rpm <= 0 disables
// the limit.
func NewHandler(client Asker, rpm int, logger zerolog.Logger) *Handler {
	return &Handler{
		client:   client,
		rpm:      rpm,
		logger:   logger,
		limiters: make(map[string]*userLimiter),
		lastGC:   time.Now(),
		now:      time.Now,
	}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/assistant/chat", h.Chat, auth.RequireRole(auth.RoleCustomer, auth.RoleAdmin))
}

func (h *Handler) allow(user string) bool {
	if h.rpm <= 0 {
		return true
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	if now.Sub(h.lastGC) > limiterIdleTTL {
		for k, u := range h.limiters {
			if now.Sub(u.lastSeen) > limiterIdleTTL {
				delete(h.limiters, k)
			}
		}
		h.lastGC = now
	}

	u, ok := h.limiters[user]
	if !ok {
		u = &userLimiter{limiter: rate.NewLimiter(rate.Limit(float64(h.rpm)/60), h.rpm)}
		h.limiters[user] = u
	}
	u.lastSeen = now
	return u.limiter.AllowN(now, 1)
}

type askRequest struct {
	Message string `json:"message"`
}

type askReply struct {
	Reply string `json:"reply"`
}

func (h *Handler) Chat(c echo.Context) error {
	key := strings.TrimSpace(c.Request().Header.Get(KeyHeader))
	if key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "assistant key required in "+KeyHeader+" header")
	}
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	if len(msg) > maxMessageLen {
		return echo.NewHTTPError(http.StatusBadRequest, "message is too long")
	}

	ctx := c.Request().Context()
	user := auth.UserIDFromContext(ctx)
	if !h.allow(user) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many questions, slow down")
	}

	reply, err := h.client.Ask(ctx, key, msg)
	if err != nil {
		h.logger.Warn().Err(err).Str("user_id", user).Msg("assistant request failed")
		var apiErr *APIError
		switch {
		case errors.Is(err, ErrInvalidKey):
			return echo.NewHTTPError(http.StatusUnauthorized, "the assistant key was rejected")
		case errors.Is(err, ErrRateLimited):
			return echo.NewHTTPError(http.StatusTooManyRequests, "the assistant is rate limited, try again later")
		case errors.As(err, &apiErr):
			return echo.NewHTTPError(http.StatusBadGateway, "assistant unavailable: "+apiErr.StatusText)
		}
		return echo.NewHTTPError(http.StatusBadGateway, "assistant unavailable")
	}
	return c.JSON(http.StatusOK, askReply{Reply: reply})
}
