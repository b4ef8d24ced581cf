// Package realtime expone las suscripciones en vivo por websocket. Cada
// conexión abre una suscripción; cada resultado se envía como un frame
// {"data": ..., "error": ...} y la suscripción se cierra cuando el cliente
// se desconecta.
package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"pet-care-log/internal/live"
	"pet-care-log/internal/platform/httpjson"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Frame es cada mensaje que recibe el cliente.
type Frame struct {
	Data   any    `json:"data"`
	Error  string `json:"error,omitempty"`
	Status int    `json:"status,omitempty"`
}

// OpenFunc abre la suscripción que alimenta la conexión.
type OpenFunc func(ctx context.Context, emit func(any, error)) *live.Subscription

type Streamer struct {
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewStreamer(log *zap.Logger) *Streamer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Streamer{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// el origen se filtra en el proxy
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// conn serializa las escrituras: gorilla admite un solo writer a la vez.
type conn struct {
	ws     *websocket.Conn
	mu     sync.Mutex
	closed bool
}

func (c *conn) send(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(f)
}

func (c *conn) close(code int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, ""), time.Now().Add(writeWait))
	_ = c.ws.Close()
}

// Serve hace el upgrade y bombea la suscripción hasta que el cliente cierre,
// falle una escritura o la suscripción termine.
func (s *Streamer) Serve(w http.ResponseWriter, r *http.Request, open OpenFunc) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade ya respondió con el error HTTP
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &conn{ws: ws}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	log := s.log.With(zap.String("path", r.URL.Path))
	log.Debug("stream opened")

	sub := open(ctx, func(v any, err error) {
		f := Frame{Data: v}
		if err != nil {
			f.Status, f.Error = httpjson.PublicError(err)
		}
		if err := c.send(f); err != nil {
			cancel()
		}
	})

	go s.readLoop(ws, cancel)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-sub.Done():
			// la suscripción terminó sola (p.ej. acceso revocado)
			break loop
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				break loop
			}
		}
	}

	sub.Close()
	<-sub.Done()
	c.close(websocket.CloseNormalClosure)
	log.Debug("stream closed")
}

// readLoop descarta lo que mande el cliente; solo sirve para detectar el
// cierre y recibir los pong.
func (s *Streamer) readLoop(ws *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("websocket read ended", zap.Error(err))
			}
			return
		}
	}
}
