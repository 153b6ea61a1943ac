package chessclient

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-chess/pkg/chessdto"
)

// Live is one websocket session. Inbound events are delivered on Events in
// arrival order; the channel closes when the connection ends.
type Live struct {
	conn   *websocket.Conn
	events chan chessdto.Event

	ctx    context.Context
	cancel context.CancelFunc

	writeMu  sync.Mutex
	errMu    sync.Mutex
	err      error
	done     chan struct{}
	stopOnce sync.Once
}

type LiveOptions struct {
	// HTTPHeader is sent with the handshake.
	HTTPHeader http.Header
	// Buffer is the capacity of Events. Zero means 64.
	Buffer int
}

// Dial opens a session against wsURL (ws:// or wss://).
func Dial(ctx context.Context, wsURL string, opts *LiveOptions) (*Live, error) {
	if opts == nil {
		opts = &LiveOptions{}
	}
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 64
	}
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      opts.HTTPHeader,
	})
	if err != nil {
		return nil, err
	}

	l := &Live{
		conn:   conn,
		events: make(chan chessdto.Event, buffer),
		done:   make(chan struct{}),
	}
	l.ctx, l.cancel = context.WithCancel(context.Background())
	go l.listen()
	return l, nil
}

func (l *Live) listen() {
	defer close(l.done)
	defer close(l.events)
	for {
		var ev chessdto.Event
		if err := wsjson.Read(l.ctx, l.conn, &ev); err != nil {
			l.setErr(err)
			return
		}
		select {
		case l.events <- ev:
		case <-l.ctx.Done():
			return
		}
	}
}

func (l *Live) Events() <-chan chessdto.Event { return l.events }

// Next waits for the next event.
func (l *Live) Next(ctx context.Context) (chessdto.Event, error) {
	select {
	case ev, ok := <-l.events:
		if !ok {
			if err := l.Err(); err != nil {
				return chessdto.Event{}, err
			}
			return chessdto.Event{}, errors.New("live session closed")
		}
		return ev, nil
	case <-ctx.Done():
		return chessdto.Event{}, ctx.Err()
	}
}

// Err is why the read loop stopped, if it has.
func (l *Live) Err() error {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	return l.err
}

func (l *Live) setErr(err error) {
	l.errMu.Lock()
	if l.err == nil {
		l.err = err
	}
	l.errMu.Unlock()
}

func (l *Live) Connect(ctx context.Context, token string, gameID int) error {
	return l.send(ctx, chessdto.Command{CommandType: chessdto.CommandConnect, AuthToken: token, GameID: gameID})
}

func (l *Live) MakeMove(ctx context.Context, token string, gameID int, mv chessdto.Move) error {
	return l.send(ctx, chessdto.Command{CommandType: chessdto.CommandMakeMove, AuthToken: token, GameID: gameID, Move: &mv})
}

func (l *Live) Leave(ctx context.Context, token string, gameID int) error {
	return l.send(ctx, chessdto.Command{CommandType: chessdto.CommandLeave, AuthToken: token, GameID: gameID})
}

func (l *Live) Resign(ctx context.Context, token string, gameID int) error {
	return l.send(ctx, chessdto.Command{CommandType: chessdto.CommandResign, AuthToken: token, GameID: gameID})
}

func (l *Live) send(ctx context.Context, cmd chessdto.Command) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	return wsjson.Write(ctx, l.conn, cmd)
}

// Close ends the session and waits for the read loop.
func (l *Live) Close() error {
	var err error
	l.stopOnce.Do(func() {
		err = l.conn.Close(websocket.StatusNormalClosure, "bye")
		l.cancel()
		<-l.done
	})
	return err
}
