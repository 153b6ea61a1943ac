package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/park285/cheese-chess/internal/chess"
)

func TestBindFirstWriterWins(t *testing.T) {
	r := NewGameRecord(1, "g")
	if err := r.Bind(chess.White, "alice"); err != nil {
		t.Fatalf("Bind alice: %v", err)
	}
	if err := r.Bind(chess.White, "alice"); err != nil {
		t.Fatalf("rebind by incumbent: %v", err)
	}
	if err := r.Bind(chess.White, "bob"); !errors.Is(err, ErrAlreadyTaken) {
		t.Fatalf("Bind bob err = %v, want ErrAlreadyTaken", err)
	}
	if err := r.Bind(chess.NoColor, "bob"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("Bind NoColor err = %v, want ErrInvalidRequest", err)
	}
	if r.WhiteUser != "alice" {
		t.Fatalf("white = %q, want alice", r.WhiteUser)
	}
}

func TestRolesAndUnbind(t *testing.T) {
	r := NewGameRecord(1, "g")
	_ = r.Bind(chess.White, "alice")
	_ = r.Bind(chess.Black, "bob")
	if r.RoleOf("alice") != RoleWhite || r.RoleOf("bob") != RoleBlack || r.RoleOf("carol") != RoleObserver {
		t.Fatalf("unexpected roles")
	}
	if r.Unbind("carol") {
		t.Fatalf("observer held no slot")
	}
	if !r.Unbind("bob") || r.BlackUser != "" {
		t.Fatalf("bob should have been unbound")
	}
}

func TestCloneIsDeep(t *testing.T) {
	r := NewGameRecord(3, "g")
	c := r.Clone()
	if err := c.Game.ApplyMove(chess.NewMove(chess.NewPosition(2, 5), chess.NewPosition(4, 5))); err != nil {
		t.Fatalf("ApplyMove: %v", err)
	}
	if r.Game.Turn() != chess.White {
		t.Fatalf("clone shares game state with the original")
	}
}

func TestMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{ErrUnauthorized, "Error: unauthorized"},
		{fmt.Errorf("%w: not your turn", ErrUnauthorized), "Error: unauthorized: not your turn"},
		{ErrAlreadyTaken, "Error: already taken"},
		{ErrInvalidRequest, "Error: bad request"},
		{fmt.Errorf("%w: connection refused", ErrDataAccess), "Error: data access failure"},
		{errors.New("boom"), "Error: internal server error"},
	}
	for _, tc := range cases {
		if got := Message(tc.err); got != tc.want {
			t.Fatalf("Message(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
	if !IsClientError(fmt.Errorf("wrap: %w", chess.ErrInvalidMove)) {
		t.Fatalf("engine errors are client errors")
	}
}
