package chess

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustMove(t *testing.T, s string) Move {
	t.Helper()
	m, err := ParseMove(s)
	if err != nil {
		t.Fatalf("ParseMove(%q): %v", s, err)
	}
	return m
}

func mustPos(t *testing.T, s string) Position {
	t.Helper()
	p, err := ParsePosition(s)
	if err != nil {
		t.Fatalf("ParsePosition(%q): %v", s, err)
	}
	return p
}

func playLine(t *testing.T, g *Game, line string) {
	t.Helper()
	for _, s := range strings.Fields(line) {
		if err := g.ApplyMove(mustMove(t, s)); err != nil {
			t.Fatalf("ApplyMove(%s): %v", s, err)
		}
	}
}

func boardFromRows(t *testing.T, rows ...string) *Board {
	t.Helper()
	b, err := ParseRows(rows)
	if err != nil {
		t.Fatalf("ParseRows: %v", err)
	}
	return b
}

func hasMove(moves []Move, m Move) bool { return containsMove(moves, m) }

func TestResetLayout(t *testing.T) {
	b := NewBoard()
	if got := b.Count(White); got != 16 {
		t.Fatalf("white pieces = %d, want 16", got)
	}
	if got := b.Count(Black); got != 16 {
		t.Fatalf("black pieces = %d, want 16", got)
	}
	if p, _ := b.Get(NewPosition(1, 5)); p != NewPiece(White, King) {
		t.Fatalf("e1 = %+v, want white king", p)
	}
	if p, _ := b.Get(NewPosition(8, 5)); p != NewPiece(Black, King) {
		t.Fatalf("e8 = %+v, want black king", p)
	}
	for row := 1; row <= 8; row++ {
		for col := 1; col <= 8; col++ {
			p, okP := b.Get(NewPosition(row, col))
			q, okQ := b.Get(NewPosition(9-row, col))
			if okP != okQ {
				t.Fatalf("occupancy differs at row %d col %d vs mirror", row, col)
			}
			if okP && (p.Type != q.Type || p.Color != q.Color.Opponent()) {
				t.Fatalf("row %d col %d: %+v does not mirror %+v", row, col, p, q)
			}
		}
	}
	want := []string{"rnbqkbnr", "pppppppp", "........", "........", "........", "........", "PPPPPPPP", "RNBQKBNR"}
	if diff := cmp.Diff(want, b.Rows()); diff != "" {
		t.Fatalf("Rows mismatch (-want +got):\n%s", diff)
	}
}

func TestOffBoardReadsEmpty(t *testing.T) {
	b := NewBoard()
	if _, ok := b.Get(NewPosition(0, 5)); ok {
		t.Fatalf("row 0 should read empty")
	}
	if _, ok := b.Get(NewPosition(4, 9)); ok {
		t.Fatalf("col 9 should read empty")
	}
	b.Set(NewPosition(9, 9), NewPiece(White, Queen))
	if b.Count(White) != 16 {
		t.Fatalf("off-board Set changed the board")
	}
}

func TestInitialMoveCounts(t *testing.T) {
	g := NewGame()
	if n := len(g.LegalMoves(White)); n != 20 {
		t.Fatalf("white legal moves = %d, want 20", n)
	}
	if n := len(g.ValidMoves(mustPos(t, "g1"))); n != 2 {
		t.Fatalf("knight g1 moves = %d, want 2", n)
	}
	if moves := g.ValidMoves(mustPos(t, "e4")); moves != nil {
		t.Fatalf("empty square should give nil, got %v", moves)
	}
	if moves := g.ValidMoves(mustPos(t, "a1")); moves == nil || len(moves) != 0 {
		t.Fatalf("boxed rook should give an empty non-nil slice, got %#v", moves)
	}
}

func TestFoolsMate(t *testing.T) {
	g := NewGame()
	playLine(t, g, "f2f3 e7e5 g2g4 d8h4")

	if !g.IsInCheck(White) {
		t.Fatalf("white should be in check")
	}
	if !g.IsInCheckmate(White) {
		t.Fatalf("white should be checkmated")
	}
	if g.IsInStalemate(White) {
		t.Fatalf("checkmate is not stalemate")
	}
	if moves := g.ValidMoves(mustPos(t, "e1")); len(moves) != 0 {
		t.Fatalf("white king moves = %v, want none", moves)
	}
	// checkmate stays advisory
	if g.Over() || g.Turn() != White {
		t.Fatalf("checkmate must not end the game: over=%v turn=%v", g.Over(), g.Turn())
	}
}

func TestStalemate(t *testing.T) {
	b := boardFromRows(t,
		"........",
		"........",
		"........",
		"........",
		"........",
		".q......",
		"..k.....",
		"K.......",
	)
	g := NewGameFromBoard(b, White)
	if g.IsInCheck(White) {
		t.Fatalf("white should not be in check")
	}
	if !g.IsInStalemate(White) {
		t.Fatalf("white should be stalemated")
	}
	if g.IsInCheckmate(White) {
		t.Fatalf("stalemate is not checkmate")
	}
	if g.IsInStalemate(Black) {
		t.Fatalf("black has moves")
	}
}

func TestEnPassantWindow(t *testing.T) {
	g := NewGame()
	playLine(t, g, "e2e4 a7a6 e4e5 d7d5")

	capture := mustMove(t, "e5d6")
	if !hasMove(g.ValidMoves(mustPos(t, "e5")), capture) {
		t.Fatalf("en passant e5d6 missing right after the double step")
	}

	late := g.Clone()
	playLine(t, late, "h2h3 a6a5")
	if hasMove(late.ValidMoves(mustPos(t, "e5")), capture) {
		t.Fatalf("en passant e5d6 still offered a ply later")
	}
	if err := late.ApplyMove(capture); !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("late en passant err = %v, want ErrInvalidMove", err)
	}

	if err := g.ApplyMove(capture); err != nil {
		t.Fatalf("ApplyMove(e5d6): %v", err)
	}
	if _, ok := g.board.Get(mustPos(t, "d5")); ok {
		t.Fatalf("captured pawn still on d5")
	}
	if p, _ := g.board.Get(mustPos(t, "d6")); p != NewPiece(White, Pawn) {
		t.Fatalf("d6 = %+v, want white pawn", p)
	}
	if g.board.Count(Black) != 15 {
		t.Fatalf("black pieces = %d, want 15", g.board.Count(Black))
	}
}

func TestEnPassantNotAfterSingleSteps(t *testing.T) {
	g := NewGame()
	// the d pawn reaches d5 in two single steps
	playLine(t, g, "e2e4 d7d6 e4e5 d6d5")
	if _, ok := g.EnPassantPawn(); ok {
		t.Fatalf("no double step was played")
	}
	if hasMove(g.ValidMoves(mustPos(t, "e5")), mustMove(t, "e5d6")) {
		t.Fatalf("en passant offered without a double step")
	}
}

func TestCastling(t *testing.T) {
	open := func() *Game {
		return NewGameFromBoard(boardFromRows(t,
			"....k...",
			"........",
			"........",
			"........",
			"........",
			"........",
			"........",
			"R...K..R",
		), White)
	}
	short, long := mustMove(t, "e1g1"), mustMove(t, "e1c1")

	g := open()
	moves := g.ValidMoves(mustPos(t, "e1"))
	if !hasMove(moves, short) || !hasMove(moves, long) {
		t.Fatalf("both castles expected, got %v", moves)
	}

	t.Run("attacked f1", func(t *testing.T) {
		g := open()
		g.board.Set(mustPos(t, "f8"), NewPiece(Black, Rook))
		moves := g.ValidMoves(mustPos(t, "e1"))
		if hasMove(moves, short) {
			t.Fatalf("short castle through attacked f1 offered")
		}
		if !hasMove(moves, long) {
			t.Fatalf("long castle should remain")
		}
	})

	t.Run("attacked d1", func(t *testing.T) {
		g := open()
		g.board.Set(mustPos(t, "d8"), NewPiece(Black, Rook))
		moves := g.ValidMoves(mustPos(t, "e1"))
		if hasMove(moves, long) {
			t.Fatalf("long castle through attacked d1 offered")
		}
		if !hasMove(moves, short) {
			t.Fatalf("short castle should remain")
		}
	})

	t.Run("in check", func(t *testing.T) {
		g := open()
		g.board.Set(mustPos(t, "e5"), NewPiece(Black, Rook))
		moves := g.ValidMoves(mustPos(t, "e1"))
		if hasMove(moves, short) || hasMove(moves, long) {
			t.Fatalf("castling out of check offered: %v", moves)
		}
	})

	t.Run("blocked b1", func(t *testing.T) {
		g := open()
		g.board.Set(mustPos(t, "b1"), NewPiece(White, Knight))
		if hasMove(g.ValidMoves(mustPos(t, "e1")), long) {
			t.Fatalf("long castle with b1 occupied offered")
		}
	})

	t.Run("rook moved", func(t *testing.T) {
		g := open()
		playLine(t, g, "h1h2 e8d8 h2h1 d8e8")
		moves := g.ValidMoves(mustPos(t, "e1"))
		if hasMove(moves, short) {
			t.Fatalf("short castle after rook moved offered")
		}
		if !hasMove(moves, long) {
			t.Fatalf("long castle should remain")
		}
	})

	t.Run("apply", func(t *testing.T) {
		g := open()
		if err := g.ApplyMove(short); err != nil {
			t.Fatalf("ApplyMove(e1g1): %v", err)
		}
		if p, _ := g.board.Get(mustPos(t, "f1")); p != NewPiece(White, Rook) {
			t.Fatalf("f1 = %+v, want rook", p)
		}
		if _, ok := g.board.Get(mustPos(t, "h1")); ok {
			t.Fatalf("h1 still occupied")
		}
		if !g.board.HasMoved(mustPos(t, "f1")) || !g.board.HasMoved(mustPos(t, "g1")) {
			t.Fatalf("castled king and rook must be marked moved")
		}
	})
}

func TestPromotionVariants(t *testing.T) {
	g := NewGameFromBoard(boardFromRows(t,
		"....k...",
		"P.......",
		"........",
		"........",
		"........",
		"........",
		"........",
		"....K...",
	), White)
	moves := g.ValidMoves(mustPos(t, "a7"))
	if len(moves) != 4 {
		t.Fatalf("promotion moves = %v, want 4 variants", moves)
	}
	if err := g.ApplyMove(NewMove(mustPos(t, "a7"), mustPos(t, "a8"))); !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("promotion without a piece err = %v, want ErrInvalidMove", err)
	}
	if err := g.ApplyMove(mustMove(t, "a7a8n")); err != nil {
		t.Fatalf("ApplyMove(a7a8n): %v", err)
	}
	if p, _ := g.board.Get(mustPos(t, "a8")); p != NewPiece(White, Knight) {
		t.Fatalf("a8 = %+v, want white knight", p)
	}
}

func TestApplyMoveRejections(t *testing.T) {
	g := NewGame()
	cases := []struct {
		name string
		move string
	}{
		{"empty start", "e4e5"},
		{"wrong side", "e7e5"},
		{"illegal geometry", "e2e5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := g.ApplyMove(mustMove(t, tc.move)); !errors.Is(err, ErrInvalidMove) {
				t.Fatalf("err = %v, want ErrInvalidMove", err)
			}
		})
	}
	if g.Turn() != White || !g.board.Equal(NewBoard()) {
		t.Fatalf("rejected moves must not change state")
	}

	g.Resign()
	if !g.Over() || g.Turn() != NoColor {
		t.Fatalf("resign should end the game")
	}
	if err := g.ApplyMove(mustMove(t, "e2e4")); !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("move after resign err = %v, want ErrInvalidMove", err)
	}
}

func TestPinnedPieceCannotMove(t *testing.T) {
	g := NewGameFromBoard(boardFromRows(t,
		"....r..k",
		"........",
		"........",
		"........",
		"........",
		"........",
		"....B...",
		"....K...",
	), White)
	if moves := g.ValidMoves(mustPos(t, "e2")); len(moves) != 0 {
		t.Fatalf("pinned bishop moves = %v, want none", moves)
	}
}

func TestTurnFlipsAfterMove(t *testing.T) {
	g := NewGame()
	m := mustMove(t, "e2e4")
	playLine(t, g, "e2e4")
	if g.Turn() != Black {
		t.Fatalf("turn = %v, want BLACK", g.Turn())
	}
	if hasMove(g.LegalMoves(g.Turn()), m) {
		t.Fatalf("the move just played is still pending for the side to move")
	}
	if err := g.ApplyMove(mustMove(t, "d2d4")); !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("white moving twice err = %v, want ErrInvalidMove", err)
	}
}

func TestLegalMovesNeverSelfCheck(t *testing.T) {
	g := NewGame()
	for _, s := range strings.Fields("e2e4 d7d5 e4d5 d8d5 b1c3 d5e5 f1e2 e5e2") {
		for _, c := range []Color{White, Black} {
			for _, m := range g.LegalMoves(c) {
				trial := g.Clone()
				trial.SetTurn(c)
				if err := trial.ApplyMove(m); err != nil {
					t.Fatalf("legal %s rejected: %v", m, err)
				}
				if trial.IsInCheck(c) {
					t.Fatalf("%s leaves %s in check", m, c)
				}
			}
		}
		playLine(t, g, s)
	}
}

func TestValidMovesDoesNotMutate(t *testing.T) {
	g := NewGame()
	playLine(t, g, "e2e4 e7e5 g1f3 b8c6 f1c4 f8c5")
	before := g.Board()
	g.LegalMoves(White)
	g.LegalMoves(Black)
	g.IsInCheckmate(White)
	if !g.board.Equal(before) {
		t.Fatalf("board changed while generating moves")
	}
}

func TestGameJSONRoundTrip(t *testing.T) {
	g := NewGame()
	playLine(t, g, "e2e4 a7a6 e4e5 d7d5")
	data, err := json.Marshal(g)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back Game
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !back.board.Equal(g.board) || back.Turn() != g.Turn() {
		t.Fatalf("state lost in round trip: %s", data)
	}
	// the en passant window and the moved flags must survive storage
	if !hasMove(back.ValidMoves(mustPos(t, "e5")), mustMove(t, "e5d6")) {
		t.Fatalf("en passant window lost in round trip")
	}
}
