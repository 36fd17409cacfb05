package ws

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/glasspane/glasspane/internal/endpoint"
	"github.com/glasspane/glasspane/internal/hub"
	"github.com/glasspane/glasspane/internal/monitoring"
	"github.com/glasspane/glasspane/internal/router"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // viewer windows connect from app origins
	},
}

// inbound is the wire shape of every client→server message.
type inbound struct {
	Type    string      `json:"type"`
	Command hub.Command `json:"command,omitempty"`
}

// Handler manages viewer WebSocket connections.
type Handler struct {
	hub      *hub.Hub
	router   *router.Router
	registry *endpoint.Registry
	logger   *zap.Logger
	metrics  *monitoring.Metrics
}

// NewHandler creates a new viewer WebSocket handler.
func NewHandler(h *hub.Hub, r *router.Router, reg *endpoint.Registry, logger *zap.Logger, metrics *monitoring.Metrics) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{hub: h, router: r, registry: reg, logger: logger, metrics: metrics}
}

// HandleConnection upgrades the request and runs the viewer session
// until the socket closes.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ep := newViewerEndpoint(conn)
	defer ep.destroy()

	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
		defer h.metrics.WSConnections.Dec()
	}

	h.registry.Register(ep)
	h.hub.Subscribe(ep)
	if h.router != nil {
		ep.OnGone(func() { h.router.CleanupWindow(ep.WindowID()) })
	}

	h.logger.Info("viewer connected", zap.String("window_id", string(ep.WindowID())))

	ep.write(outbound{Type: "system", Payload: map[string]any{
		"windowId": ep.WindowID(),
	}})

	for {
		var msg inbound
		if err := conn.ReadJSON(&msg); err != nil {
			h.logger.Info("viewer disconnected",
				zap.String("window_id", string(ep.WindowID())),
				zap.Error(err),
			)
			return
		}
		h.countMessage(msg.Type)

		switch msg.Type {
		case "requestInit":
			if err := h.hub.SendInit(ep.WindowID()); err != nil {
				h.sendError(ep, err.Error())
			}

		case "command":
			h.handleCommand(ep, msg.Command)

		case "ping":
			ep.write(outbound{Type: "pong"})

		default:
			h.sendError(ep, "unknown message type")
		}
	}
}

func (h *Handler) handleCommand(ep *viewerEndpoint, cmd hub.Command) {
	res, err := h.hub.Dispatch(cmd)
	if err != nil {
		h.sendError(ep, err.Error())
		return
	}

	payload := map[string]any{
		"ok":     res.OK,
		"status": res.Status,
	}
	if res.Export != nil {
		// Binary-safe transport for gzip exports.
		payload["export"] = base64.StdEncoding.EncodeToString(res.Export)
		payload["format"] = cmd.Format
	}
	ep.write(outbound{Type: "commandResult", Payload: payload})
}

func (h *Handler) sendError(ep *viewerEndpoint, message string) {
	ep.write(outbound{Type: "error", Payload: map[string]any{"message": message}})
}

func (h *Handler) countMessage(msgType string) {
	if h.metrics != nil {
		h.metrics.WSMessages.WithLabelValues(msgType, "inbound").Inc()
	}
}
