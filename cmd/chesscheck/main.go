// Command chesscheck drives one short session against a running server:
// two accounts, one game, a few moves over the websocket and a resignation.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/park285/cheese-chess/internal/chess"
	"github.com/park285/cheese-chess/internal/chessclient"
	"github.com/park285/cheese-chess/internal/session"
	"github.com/park285/cheese-chess/pkg/chessdto"
)

func main() {
	baseURL := os.Getenv("CHESS_BASE_URL")
	wsURL := os.Getenv("CHESS_WS_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	if wsURL == "" {
		wsURL = "ws://localhost:8081/ws"
	}
	suffix := fmt.Sprintf("%d", time.Now().UnixNano()%100000)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	white := chessclient.NewClient(baseURL, chessclient.WithTimeout(8*time.Second))
	black := chessclient.NewClient(baseURL, chessclient.WithTimeout(8*time.Second))
	if _, err := white.Register(ctx, "check-white-"+suffix, "pw", "white@example.com"); err != nil {
		log.Fatalf("register white: %v", err)
	}
	if _, err := black.Register(ctx, "check-black-"+suffix, "pw", "black@example.com"); err != nil {
		log.Fatalf("register black: %v", err)
	}
	id, err := white.CreateGame(ctx, "chesscheck "+suffix)
	if err != nil {
		log.Fatalf("create game: %v", err)
	}
	if err := white.JoinGame(ctx, id, "WHITE"); err != nil {
		log.Fatalf("join white: %v", err)
	}
	if err := black.JoinGame(ctx, id, "BLACK"); err != nil {
		log.Fatalf("join black: %v", err)
	}
	log.Printf("game %d ready", id)

	lw, err := chessclient.Dial(ctx, wsURL, nil)
	if err != nil {
		log.Fatalf("ws dial: %v", err)
	}
	defer lw.Close()
	lb, err := chessclient.Dial(ctx, wsURL, nil)
	if err != nil {
		log.Fatalf("ws dial: %v", err)
	}
	defer lb.Close()

	go printEvents("white", lw)
	go printEvents("black", lb)

	if err := lw.Connect(ctx, white.Token(), id); err != nil {
		log.Fatalf("connect white: %v", err)
	}
	if err := lb.Connect(ctx, black.Token(), id); err != nil {
		log.Fatalf("connect black: %v", err)
	}

	line := []string{"e2e4", "e7e5", "g1f3"}
	for i, s := range line {
		m, err := chess.ParseMove(s)
		if err != nil {
			log.Fatalf("parse %s: %v", s, err)
		}
		live, token := lw, white.Token()
		if i%2 == 1 {
			live, token = lb, black.Token()
		}
		if err := live.MakeMove(ctx, token, id, session.MoveToDTO(m)); err != nil {
			log.Fatalf("move %s: %v", s, err)
		}
		time.Sleep(200 * time.Millisecond)
	}
	if err := lb.Resign(ctx, black.Token(), id); err != nil {
		log.Fatalf("resign: %v", err)
	}
	time.Sleep(500 * time.Millisecond)

	png, err := white.BoardPNG(ctx, id, "white")
	if err != nil {
		log.Printf("board.png error: %v", err)
	} else {
		log.Printf("board.png ok: %d bytes", len(png))
	}
}

func printEvents(who string, l *chessclient.Live) {
	for ev := range l.Events() {
		switch ev.ServerMessageType {
		case chessdto.MessageLoadGame:
			fmt.Printf("[%s] LOAD_GAME turn=%s\n%s\n", who, ev.Game.Turn, strings.Join(ev.Game.Board, "\n"))
		case chessdto.MessageNotification:
			fmt.Printf("[%s] %s\n", who, ev.Message)
		case chessdto.MessageError:
			fmt.Printf("[%s] %s\n", who, ev.ErrorMessage)
		}
	}
}
