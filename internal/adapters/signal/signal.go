package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/calmcall/calmcall/internal/app"
	"github.com/calmcall/calmcall/internal/core"
	"github.com/calmcall/calmcall/internal/domain"
	"github.com/calmcall/calmcall/internal/uploads"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrBackpressure = errors.New("backpressure")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller owns the websocket side of the gateway: one read pump and
// one write pump per connection, dispatching into the orchestrator.
type Controller struct {
	Orch       *app.Orchestrator
	Uploads    *uploads.Store
	Limiter    *MessageRateLimiter
	ReadLimit  int64
	PingPeriod time.Duration
}

func NewController(orch *app.Orchestrator, store *uploads.Store, readLimit int64, pingPeriod time.Duration) *Controller {
	return &Controller{
		Orch:       orch,
		Uploads:    store,
		Limiter:    NewMessageRateLimiter(10, time.Minute),
		ReadLimit:  readLimit,
		PingPeriod: pingPeriod,
	}
}

// wsConn implements core.SignalConnection over a gorilla websocket with a
// buffered FIFO send queue. TrySend never blocks; a full queue drops the
// frame, which only ever hurts the slow reader itself.
type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// HandleSignal upgrades the request and registers the session. The sid
// comes from the client-token cookie set by the router middleware, so a
// reconnecting browser keeps its identity.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := domain.SessionID(c.GetString("client_token"))
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	conn := &wsConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Registry.BindSignal(sid, conn, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sid, conn)
}
