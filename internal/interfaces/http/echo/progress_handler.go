package echo

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	domain "github.com/mohammadpnp/site-import/internal/domain/project"
)

const (
	progressWriteWait    = 10 * time.Second
	progressPingInterval = 20 * time.Second
	progressPongWait     = progressPingInterval * 2
)

type ProgressSubscriber interface {
	Subscribe(ctx context.Context, jobID string) (<-chan domain.ProgressEvent, func(), error)
}

// ProgressHandler streams job progress events over a WebSocket until the
// completion event has been sent or the client goes away.
type ProgressHandler struct {
	subscriber ProgressSubscriber
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

func NewProgressHandler(subscriber ProgressSubscriber, logger *slog.Logger) *ProgressHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressHandler{
		subscriber: subscriber,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
}

func (h *ProgressHandler) StreamProgress(c echo.Context) error {
	jobID := c.Param("id")
	if _, err := uuid.Parse(jobID); err != nil {
		return badRequest(c, "invalid_import_id", "id must be a valid UUID")
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	events, unsubscribe, err := h.subscriber.Subscribe(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return c.JSON(http.StatusNotFound, apiResponse{Error: &errorBody{Code: "not_found", Message: "import not found"}})
		}
		h.logger.Error("subscribe to import progress failed", "import_id", jobID, "error", err)
		return c.JSON(http.StatusInternalServerError, apiResponse{Error: &errorBody{Code: "internal_error", Message: "failed to subscribe"}})
	}
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "import_id", jobID, "error", err)
		return nil
	}
	defer conn.Close()

	go h.readUntilClosed(conn, cancel)

	ticker := time.NewTicker(progressPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				h.closeNormal(conn)
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(progressWriteWait))
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Debug("write progress event failed", "import_id", jobID, "error", err)
				return nil
			}
			if event.IsTerminal() {
				h.closeNormal(conn)
				return nil
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(progressWriteWait)); err != nil {
				return nil
			}
		}
	}
}

// readUntilClosed drains client frames so pongs and close frames are handled.
func (h *ProgressHandler) readUntilClosed(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(progressPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(progressPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *ProgressHandler) closeNormal(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "import finished")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(progressWriteWait))
}
