package handler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/tutorlink-api/internal/dto"
	"github.com/noah-isme/tutorlink-api/internal/middleware"
	"github.com/noah-isme/tutorlink-api/internal/service"
	"github.com/noah-isme/tutorlink-api/internal/utils"
)

const defaultKeepAlive = 30 * time.Second

// NotificationHandler serves the notification inbox and its live push channels.
type NotificationHandler struct {
	service   service.NotificationService
	logger    zerolog.Logger
	keepAlive time.Duration
}

// NewNotificationHandler constructs a handler instance.
func NewNotificationHandler(service service.NotificationService, logger zerolog.Logger, keepAlive time.Duration) *NotificationHandler {
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	return &NotificationHandler{
		service:   service,
		logger:    logger.With().Str("component", "notification_handler").Logger(),
		keepAlive: keepAlive,
	}
}

// Register binds the notification routes. Browsers cannot set headers on a
// websocket handshake, so /ws also accepts ?token=.
func (h *NotificationHandler) Register(router fiber.Router, guards Guards) {
	router.Get("/ws", append(guards.authenticated(), h.upgrade, websocket.New(h.handleConnection))...)
	router.Get("/stream", chain(guards.authenticated(), h.stream)...)
	router.Get("/", chain(guards.authenticated(), h.list)...)
	router.Patch("/read-all", chain(guards.authenticated(), h.markAllRead)...)
	router.Patch("/:id/read", chain(guards.authenticated(), h.markRead)...)
	router.Delete("/:id", chain(guards.authenticated(), h.delete)...)
}

func (h *NotificationHandler) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	c.Locals("socket_user_id", middleware.ActorFromContext(c).ID)
	return c.Next()
}

func (h *NotificationHandler) handleConnection(conn *websocket.Conn) {
	userID, _ := conn.Locals("socket_user_id").(uint)
	if userID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication required"))
		_ = conn.Close()
		return
	}

	stream, cleanup := h.service.Subscribe(userID)
	closed := make(chan struct{})
	var once sync.Once
	shutdown := func() {
		once.Do(func() {
			close(closed)
			cleanup()
			_ = conn.Close()
		})
	}
	defer shutdown()

	h.logger.Info().Uint("user_id", userID).Msg("notification websocket connected")

	// Client frames are ignored; reading detects the close handshake.
	go func() {
		defer shutdown()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case notification, ok := <-stream:
			if !ok {
				return
			}
			if err := conn.WriteJSON(notification); err != nil {
				h.logger.Debug().Err(err).Uint("user_id", userID).Msg("notification write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				h.logger.Debug().Err(err).Uint("user_id", userID).Msg("notification ping failed")
				return
			}
		case <-closed:
			h.logger.Info().Uint("user_id", userID).Msg("notification websocket disconnected")
			return
		}
	}
}

func (h *NotificationHandler) stream(c *fiber.Ctx) error {
	userID := middleware.ActorFromContext(c).ID

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	stream, cleanup := h.service.Subscribe(userID)
	keepAlive := h.keepAlive

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cleanup()

		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		for {
			select {
			case notification, ok := <-stream:
				if !ok {
					return
				}
				if err := writeNotificationEvent(w, notification); err != nil {
					h.logger.Debug().Err(err).Msg("failed to write notification event")
					return
				}
			case <-ticker.C:
				if err := writeKeepAlive(w); err != nil {
					h.logger.Debug().Err(err).Msg("failed to write notification keepalive")
					return
				}
			}
		}
	})

	return nil
}

func (h *NotificationHandler) list(c *fiber.Ctx) error {
	page, pageSize, err := parsePage(c)
	if err != nil {
		return err
	}

	result, err := h.service.List(requestContext(c), middleware.ActorFromContext(c).ID, queryBool(c, "unread"), page, pageSize)
	if err != nil {
		return err
	}

	return utils.OK(c, result, "notifications retrieved", nil)
}

func (h *NotificationHandler) markRead(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	notification, err := h.service.MarkRead(requestContext(c), id, middleware.ActorFromContext(c).ID)
	if err != nil {
		return err
	}

	return utils.OK(c, notification, "notification updated", nil)
}

func (h *NotificationHandler) markAllRead(c *fiber.Ctx) error {
	updated, err := h.service.MarkAllRead(requestContext(c), middleware.ActorFromContext(c).ID)
	if err != nil {
		return err
	}

	return utils.OK(c, fiber.Map{"updated": updated}, "notifications marked as read", nil)
}

func (h *NotificationHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.service.Delete(requestContext(c), id, middleware.ActorFromContext(c).ID); err != nil {
		return err
	}

	return utils.OK(c, nil, "notification deleted", nil)
}

func writeNotificationEvent(w *bufio.Writer, notification dto.NotificationResponse) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: notification\ndata: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeKeepAlive(w *bufio.Writer) error {
	if _, err := fmt.Fprintf(w, ": keep-alive %s\n\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return w.Flush()
}
