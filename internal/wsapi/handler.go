// Package wsapi is the live-session websocket endpoint. Each connection gets
// its own outbox and writer goroutine; inbound commands go to the session
// dispatcher in arrival order.
package wsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/park285/cheese-chess/internal/domain"
	"github.com/park285/cheese-chess/internal/fanout"
	"github.com/park285/cheese-chess/pkg/chessdto"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, cmd chessdto.Command, h fanout.Handle) error
}

// Detacher forgets a handle in every game it was subscribed to.
type Detacher interface {
	Drop(h fanout.Handle)
}

type Handler struct {
	sessions     Dispatcher
	subs         Detacher
	sendBuffer   int
	writeTimeout time.Duration
	origins      []string
	logger       *zap.Logger
}

type Option func(*Handler)

func WithLogger(l *zap.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithSendBuffer sets how many events may queue for a slow peer before it
// starts losing them.
func WithSendBuffer(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// WithOriginPatterns allows cross-origin browser clients matching patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Handler) { h.origins = append(h.origins, patterns...) }
}

func NewHandler(sessions Dispatcher, subs Detacher, opts ...Option) *Handler {
	h := &Handler{
		sessions:     sessions,
		subs:         subs,
		sendBuffer:   32,
		writeTimeout: 5 * time.Second,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  h.origins,
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		h.logger.Warn("ws_accept_failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	started := time.Now()
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := fanout.NewOutbox(h.sendBuffer, func(ctx context.Context, payload []byte) error {
		wctx, wcancel := context.WithTimeout(ctx, h.writeTimeout)
		defer wcancel()
		return conn.Write(wctx, websocket.MessageText, payload)
	})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		if err := out.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			h.logger.Warn("ws_write_failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
			cancel()
		}
	}()

	reason := h.readLoop(ctx, conn, out)

	h.subs.Drop(out)
	out.Close()
	cancel()
	<-writerDone
	_ = conn.Close(websocket.StatusNormalClosure, "")
	h.logger.Info("ws_close",
		zap.String("remote", r.RemoteAddr),
		zap.String("reason", reason),
		zap.Duration("elapsed", time.Since(started)),
	)
}

// readLoop runs until the peer goes away and returns why.
func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, out *fanout.Outbox) string {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				return fmt.Sprintf("peer closed: %d", status)
			}
			if ctx.Err() != nil {
				return "context done"
			}
			return err.Error()
		}
		if typ != websocket.MessageText {
			h.reject(out, fmt.Errorf("%w: commands must be text frames", domain.ErrInvalidRequest))
			continue
		}
		var cmd chessdto.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			h.reject(out, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err))
			continue
		}
		if err := h.sessions.Dispatch(ctx, cmd, out); err != nil {
			if domain.IsClientError(err) {
				h.logger.Debug("ws_command_rejected", zap.String("command", string(cmd.CommandType)), zap.Int("game_id", cmd.GameID), zap.Error(err))
			} else {
				h.logger.Error("ws_command_failed", zap.String("command", string(cmd.CommandType)), zap.Int("game_id", cmd.GameID), zap.Error(err))
			}
		}
	}
}

// reject answers a frame that never reached the dispatcher.
func (h *Handler) reject(out *fanout.Outbox, err error) {
	payload, merr := json.Marshal(chessdto.Error(domain.Message(err)))
	if merr != nil {
		return
	}
	if serr := out.Send(payload); serr != nil {
		h.logger.Warn("fanout_deliver_error", zap.Error(serr))
	}
}
