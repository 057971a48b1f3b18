package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medistore/backend/internal/domain/session"
	"github.com/medistore/backend/internal/domain/shared"
	"github.com/medistore/backend/internal/infrastructure/logger"
	"github.com/medistore/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

const (
	eventAuthState = "auth_state"
	eventHeartbeat = "heartbeat"
	streamBuffer   = 16
)

// StreamRecorder counts open event streams
type StreamRecorder interface {
	StreamOpened() func()
}

// AuthEventsHandler streams the caller's auth-state changes as server-sent
// events. The first event reports the current state with reason "restored";
// a sign-out of the caller's session, or of all sessions, ends the stream.
type AuthEventsHandler struct {
	BaseHandler
	authService AuthService
	metrics     StreamRecorder
	heartbeat   time.Duration
	now         func() time.Time
}

// NewAuthEventsHandler creates the handler. metrics may be nil.
func NewAuthEventsHandler(authService AuthService, metrics StreamRecorder, heartbeat time.Duration) *AuthEventsHandler {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &AuthEventsHandler{
		authService: authService,
		metrics:     metrics,
		heartbeat:   heartbeat,
		now:         time.Now,
	}
}

// Stream godoc
// @Summary      Auth-state event stream
// @Description  Server-sent events carrying every sign-in, profile update and sign-out of the caller
// @Tags         auth
// @Produce      text/event-stream
// @Success      200 {string} string "SSE stream"
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /auth/events [get]
func (h *AuthEventsHandler) Stream(c *gin.Context) {
	userID, ok := h.UserID(c)
	if !ok {
		return
	}
	claims := middleware.GetJWTClaims(c)
	if claims == nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	ctx := c.Request.Context()
	log := logger.GetGinLogger(c)

	changes := make(chan session.Change, streamBuffer)
	unsubscribe, err := h.authService.WatchAuthState(ctx, userID, claims.SessionID, func(change session.Change) {
		select {
		case changes <- change:
		default:
			log.Warn("Dropping auth change for slow stream", zap.String("reason", string(change.Reason)))
		}
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	defer unsubscribe()

	current, err := h.authService.CurrentUser(ctx, userID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		h.HandleError(c, err)
		return
	}

	if h.metrics != nil {
		defer h.metrics.StreamOpened()()
	}

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	c.SSEvent(eventAuthState, session.Change{
		UserID:    userID.String(),
		SessionID: claims.SessionID,
		User:      current,
		Reason:    session.ReasonRestored,
		At:        h.now(),
	})
	c.Writer.Flush()
	log.Debug("Auth event stream opened")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("Auth event stream closed by client")
			return
		case change := <-changes:
			c.SSEvent(eventAuthState, change)
			c.Writer.Flush()
			if !change.SignedIn() {
				return
			}
		case t := <-ticker.C:
			c.SSEvent(eventHeartbeat, gin.H{"timestamp": t.Unix()})
			c.Writer.Flush()
		}
	}
}
