package wsapi

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-chess/internal/auth"
	"github.com/park285/cheese-chess/internal/chess"
	"github.com/park285/cheese-chess/internal/fanout"
	"github.com/park285/cheese-chess/internal/session"
	"github.com/park285/cheese-chess/internal/store"
	"github.com/park285/cheese-chess/pkg/chessdto"
)

type fixture struct {
	url      string
	hub      *fanout.Hub
	sessions *session.Service
	gameID   int
	tokens   map[string]string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()
	accounts := auth.NewService(mem, mem, auth.WithBcryptCost(bcrypt.MinCost))
	hub := fanout.NewHub(nil)
	sessions := session.NewService(mem, accounts, hub)

	f := &fixture{hub: hub, sessions: sessions, tokens: map[string]string{}}
	for _, name := range []string{"alice", "bob"} {
		ticket, err := accounts.Register(ctx, name, "pw", name+"@example.com")
		if err != nil {
			t.Fatalf("Register: %v", err)
		}
		f.tokens[name] = ticket.Token
	}
	id, err := sessions.CreateGame(ctx, f.tokens["alice"], "ws")
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if err := sessions.Join(ctx, f.tokens["alice"], id, chess.White); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if err := sessions.Join(ctx, f.tokens["bob"], id, chess.Black); err != nil {
		t.Fatalf("Join: %v", err)
	}
	f.gameID = id

	srv := httptest.NewServer(NewHandler(sessions, hub, WithSendBuffer(8)))
	t.Cleanup(srv.Close)
	f.url = "ws" + strings.TrimPrefix(srv.URL, "http")
	return f
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, f.url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, cmd chessdto.Command) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, conn, cmd); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func expect(t *testing.T, conn *websocket.Conn, want chessdto.ServerMessageType) chessdto.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var ev chessdto.Event
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatalf("read (want %s): %v", want, err)
	}
	if ev.ServerMessageType != want {
		t.Fatalf("got %+v, want %s", ev, want)
	}
	return ev
}

func TestLiveSession(t *testing.T) {
	f := newFixture(t)
	white, black := f.dial(t), f.dial(t)

	send(t, white, chessdto.Command{CommandType: chessdto.CommandConnect, AuthToken: f.tokens["alice"], GameID: f.gameID})
	if ev := expect(t, white, chessdto.MessageLoadGame); ev.Game.GameID != f.gameID || ev.Game.Turn != "WHITE" {
		t.Fatalf("snapshot = %+v", ev.Game)
	}

	send(t, black, chessdto.Command{CommandType: chessdto.CommandConnect, AuthToken: f.tokens["bob"], GameID: f.gameID})
	expect(t, black, chessdto.MessageLoadGame)
	if ev := expect(t, white, chessdto.MessageNotification); !strings.Contains(ev.Message, "bob") {
		t.Fatalf("join notice = %q", ev.Message)
	}

	mv := session.MoveToDTO(chess.NewMove(chess.NewPosition(2, 5), chess.NewPosition(4, 5)))
	send(t, white, chessdto.Command{CommandType: chessdto.CommandMakeMove, AuthToken: f.tokens["alice"], GameID: f.gameID, Move: &mv})
	if ev := expect(t, white, chessdto.MessageLoadGame); ev.Game.Turn != "BLACK" {
		t.Fatalf("turn after move = %s", ev.Game.Turn)
	}
	expect(t, black, chessdto.MessageLoadGame)
	if ev := expect(t, black, chessdto.MessageNotification); ev.Message != "alice moved PAWN e2 to e4" {
		t.Fatalf("move notice = %q", ev.Message)
	}

	// out of turn: only the sender hears about it
	send(t, white, chessdto.Command{CommandType: chessdto.CommandMakeMove, AuthToken: f.tokens["alice"], GameID: f.gameID, Move: &mv})
	if ev := expect(t, white, chessdto.MessageError); !strings.HasPrefix(ev.ErrorMessage, "Error: unauthorized") {
		t.Fatalf("error = %q", ev.ErrorMessage)
	}

	send(t, black, chessdto.Command{CommandType: chessdto.CommandResign, AuthToken: f.tokens["bob"], GameID: f.gameID})
	if ev := expect(t, black, chessdto.MessageNotification); !strings.Contains(ev.Message, "resigned") {
		t.Fatalf("resign notice = %q", ev.Message)
	}
	if ev := expect(t, white, chessdto.MessageNotification); !strings.Contains(ev.Message, "alice wins") {
		t.Fatalf("resign notice = %q", ev.Message)
	}
}

func TestMalformedFrames(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.Write(ctx, websocket.MessageText, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if ev := expect(t, conn, chessdto.MessageError); !strings.HasPrefix(ev.ErrorMessage, "Error: bad request") {
		t.Fatalf("error = %q", ev.ErrorMessage)
	}
	if err := conn.Write(ctx, websocket.MessageBinary, []byte{1, 2, 3}); err != nil {
		t.Fatalf("write: %v", err)
	}
	expect(t, conn, chessdto.MessageError)

	send(t, conn, chessdto.Command{CommandType: chessdto.CommandConnect, AuthToken: "bogus", GameID: f.gameID})
	expect(t, conn, chessdto.MessageError)

	// the connection survives rejected frames
	send(t, conn, chessdto.Command{CommandType: chessdto.CommandConnect, AuthToken: f.tokens["bob"], GameID: f.gameID})
	expect(t, conn, chessdto.MessageLoadGame)
}

func TestCloseDropsSubscription(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	send(t, conn, chessdto.Command{CommandType: chessdto.CommandConnect, AuthToken: f.tokens["alice"], GameID: f.gameID})
	expect(t, conn, chessdto.MessageLoadGame)
	if f.hub.Len(f.gameID) != 1 {
		t.Fatalf("Len = %d after connect", f.hub.Len(f.gameID))
	}

	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	deadline := time.Now().Add(2 * time.Second)
	for f.hub.Len(f.gameID) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("closed connection still subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
