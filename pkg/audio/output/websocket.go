// ABOUTME: WebSocket network output
// ABOUTME: Broadcasts each drained descriptor as a binary message to connected listeners
package output

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// listenerQueue is the number of descriptors buffered per listener
	listenerQueue = 32

	listenerWriteWait = 2 * time.Second
)

// StreamStart is the first (text) message sent to every listener
type StreamStart struct {
	Type             string `json:"type"`
	StreamID         string `json:"stream_id"`
	SampleRate       int    `json:"sample_rate"`
	Channels         int    `json:"channels"`
	BitDepth         int    `json:"bit_depth"`
	DescriptorFrames int    `json:"descriptor_frames"`
}

// WebSocket paces the descriptor queue like Writer and fans every drained
// descriptor out to WebSocket listeners. Slow listeners lose descriptors;
// the stream itself never blocks on the network.
type WebSocket struct {
	*Writer

	streamID string
	upgrader websocket.Upgrader
	logger   *zap.Logger

	listenersMu sync.RWMutex
	listeners   map[*listener]struct{}
}

type listener struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	dropped int
}

// NewWebSocket creates a network transport; mount it as an http.Handler
func NewWebSocket(logger *zap.Logger) *WebSocket {
	if logger == nil {
		logger = zap.NewNop()
	}

	ws := &WebSocket{
		streamID: uuid.NewString(),
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		listeners: make(map[*listener]struct{}),
	}
	ws.Writer = NewWriter(nil, logger)
	ws.Writer.sink = ws.broadcast
	return ws
}

// StreamID identifies this stream for its lifetime
func (ws *WebSocket) StreamID() string {
	return ws.streamID
}

// Listeners returns the number of connected listeners
func (ws *WebSocket) Listeners() int {
	ws.listenersMu.RLock()
	defer ws.listenersMu.RUnlock()
	return len(ws.listeners)
}

// ServeHTTP upgrades a listener connection and streams to it until it goes away
func (ws *WebSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws.Writer.mu.Lock()
	cfg := ws.Writer.cfg
	opened := ws.Writer.queue != nil
	ws.Writer.mu.Unlock()

	if !opened {
		http.Error(w, "stream not configured", http.StatusServiceUnavailable)
		return
	}

	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	hello, _ := json.Marshal(StreamStart{
		Type:             "stream/start",
		StreamID:         ws.streamID,
		SampleRate:       cfg.Format.SampleRate,
		Channels:         cfg.Format.Channels,
		BitDepth:         cfg.Format.BitDepth,
		DescriptorFrames: cfg.DescriptorFrames,
	})
	conn.SetWriteDeadline(time.Now().Add(listenerWriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
		ws.logger.Warn("failed to send stream/start", zap.Error(err))
		conn.Close()
		return
	}

	l := &listener{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, listenerQueue),
	}

	ws.listenersMu.Lock()
	ws.listeners[l] = struct{}{}
	ws.listenersMu.Unlock()

	ws.logger.Info("listener connected", zap.String("listener", l.id), zap.String("remote", r.RemoteAddr))

	go ws.writePump(l)
	ws.readPump(l)
}

// broadcast hands one drained descriptor to every listener without blocking
func (ws *WebSocket) broadcast(p []byte) error {
	ws.listenersMu.RLock()
	defer ws.listenersMu.RUnlock()

	if len(ws.listeners) == 0 {
		return nil
	}

	msg := make([]byte, len(p))
	copy(msg, p)

	for l := range ws.listeners {
		select {
		case l.send <- msg:
		default:
			l.dropped++
			if l.dropped%100 == 1 {
				ws.logger.Warn("listener too slow, dropping descriptors",
					zap.String("listener", l.id), zap.Int("dropped", l.dropped))
			}
		}
	}
	return nil
}

func (ws *WebSocket) writePump(l *listener) {
	for msg := range l.send {
		l.conn.SetWriteDeadline(time.Now().Add(listenerWriteWait))
		if err := l.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
			ws.logger.Info("listener write failed", zap.String("listener", l.id), zap.Error(err))
			l.conn.Close()
			ws.remove(l)
			for range l.send {
			}
			return
		}
	}
	l.conn.Close()
}

// readPump discards client messages and detects disconnects
func (ws *WebSocket) readPump(l *listener) {
	for {
		if _, _, err := l.conn.ReadMessage(); err != nil {
			break
		}
	}
	ws.remove(l)
}

func (ws *WebSocket) remove(l *listener) {
	ws.listenersMu.Lock()
	defer ws.listenersMu.Unlock()

	if _, ok := ws.listeners[l]; !ok {
		return
	}
	delete(ws.listeners, l)
	close(l.send)
	ws.logger.Info("listener disconnected", zap.String("listener", l.id))
}

// Close stops the channel and disconnects every listener
func (ws *WebSocket) Close() error {
	err := ws.Writer.Close()

	ws.listenersMu.Lock()
	for l := range ws.listeners {
		delete(ws.listeners, l)
		close(l.send)
	}
	ws.listenersMu.Unlock()
	return err
}
