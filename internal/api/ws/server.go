package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"sentinel-worker-go/internal/dispatch"
	"sentinel-worker-go/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second

	defaultReplayCountHint = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// LiveFeedMessage is one live-feed push channel payload.
type LiveFeedMessage struct {
	CameraID           string `json:"camera_id"`
	Timestamp          int64  `json:"timestamp"`
	FrameBase64        string `json:"frame_base64"`
	ObservationSummary string `json:"observation_summary"`
}

// AnalysisMessage is one analysis push channel payload: a VisionObservation
// tied to its camera.
type AnalysisMessage struct {
	CameraID    string                    `json:"camera_id"`
	Observation models.VisionObservation `json:"observation"`
}

// SystemMessage is one system push channel payload: directive acceptance,
// camera state changes, dispatcher drop counters.
type SystemMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Hubs bundles the three broadcast hubs not already backed by the
// AlertDispatcher (live-feed, analysis, system); alerts is served directly
// from the Dispatcher's own Subscribe.
type Hubs struct {
	LiveFeed *Hub
	Analysis *Hub
	System   *Hub
}

// NewHubs constructs the three non-alert hubs with a fixed per-subscriber
// queue depth.
func NewHubs() *Hubs {
	return &Hubs{
		LiveFeed: NewHub(8),
		Analysis: NewHub(32),
		System:   NewHub(32),
	}
}

// Handler serves all four WebSocket push channels.
type Handler struct {
	hubs       *Hubs
	dispatcher *dispatch.Dispatcher
	log        zerolog.Logger
}

// NewHandler builds a Handler.
func NewHandler(hubs *Hubs, dispatcher *dispatch.Dispatcher, log zerolog.Logger) *Handler {
	return &Handler{hubs: hubs, dispatcher: dispatcher, log: log}
}

// LiveFeed handles GET /ws/live-feed.
func (h *Handler) LiveFeed(c *gin.Context) {
	h.serveAny(c, h.hubs.LiveFeed)
}

// Analysis handles GET /ws/analysis.
func (h *Handler) Analysis(c *gin.Context) {
	h.serveAny(c, h.hubs.Analysis)
}

// System handles GET /ws/system.
func (h *Handler) System(c *gin.Context) {
	h.serveAny(c, h.hubs.System)
}

// Alerts handles GET /ws/alerts, backed directly by the AlertDispatcher so
// a newly connected client replays recent alerts before receiving new ones.
func (h *Handler) Alerts(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ch, unsubscribe := h.dispatcher.Subscribe(defaultReplayCountHint)
	defer unsubscribe()

	h.writeLoop(conn, func() (any, bool) {
		alert, ok := <-ch
		return alert, ok
	})
}

func (h *Handler) serveAny(c *gin.Context, hub *Hub) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ch, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	h.writeLoop(conn, func() (any, bool) {
		msg, ok := <-ch
		return msg, ok
	})
}

// writeLoop drains recv (the subscription channel) into the connection as
// JSON frames, with a periodic ping to detect a dead peer. It returns when
// the channel closes or a write fails.
func (h *Handler) writeLoop(conn *websocket.Conn, recv func() (any, bool)) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	msgCh := make(chan any)
	go func() {
		for {
			msg, ok := recv()
			if !ok {
				close(msgCh)
				return
			}
			msgCh <- msg
		}
	}()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			payload, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
