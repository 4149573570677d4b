package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/yoockh/yootherapy/internal/services"
	"github.com/yoockh/yootherapy/internal/workers"
)

type WSHandler struct {
	speech   services.SpeechService
	redis    *redis.Client
	upgrader websocket.Upgrader
}

func NewWSHandler(speech services.SpeechService, rdb *redis.Client) *WSHandler {
	return &WSHandler{
		speech: speech,
		redis:  rdb,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin once the web client host is fixed
		},
	}
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

// AnalysisWS streams status events of one analysis until it reaches done
// or failed, or the client goes away. The first frame is the current state.
func (h *WSHandler) AnalysisWS(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	analysisID := c.Param("analysis_id")
	a, err := h.speech.GetAnalysis(c.Request.Context(), caller, analysisID)
	if err != nil {
		writeError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// re-read after subscribing so no transition falls in between
	var events <-chan *redis.Message
	if h.redis != nil && !a.Status.Terminal() {
		pubsub := h.redis.Subscribe(ctx, workers.StatusChannel(a.ID))
		defer pubsub.Close()
		events = pubsub.Channel()

		if fresh, err := h.speech.GetAnalysis(ctx, caller, analysisID); err == nil {
			a = fresh
		}
		if a.Status.Terminal() {
			events = nil
		}
	}

	snapshot, _ := json.Marshal(workers.StatusEvent{
		Type:       "status",
		AnalysisID: a.ID,
		Status:     a.Status,
		Message:    a.ErrorMessage,
		At:         time.Now().UTC(),
	})
	if err := wc.writeText(snapshot); err != nil || events == nil {
		return
	}

	// reader only watches for the client closing
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			wc.mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			wc.mu.Unlock()
			if err != nil {
				return
			}
		case m, ok := <-events:
			if !ok {
				return
			}
			if err := wc.writeText([]byte(m.Payload)); err != nil {
				return
			}
			var ev workers.StatusEvent
			if json.Unmarshal([]byte(m.Payload), &ev) == nil && ev.Status.Terminal() {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(ev.Status)),
					time.Now().Add(time.Second))
				return
			}
		}
	}
}
