package chess

import "encoding/json"

// Game is the turn state machine over a Board. It is not safe for concurrent
// use; the session registry serializes access per game.
//
// Checkmate and stalemate are queryable conditions only. The only transition
// into the over state is Resign.
type Game struct {
	turn  Color
	board *Board
	over  bool
	// enPassant is the square of the pawn that double-stepped on the previous
	// move, if any. It survives exactly one ply.
	enPassant *Position
}

// NewGame starts a game from the initial arrangement with white to move.
func NewGame() *Game {
	return &Game{turn: White, board: NewBoard()}
}

// NewGameFromBoard starts a game on a copy of b with turn to move.
func NewGameFromBoard(b *Board, turn Color) *Game {
	return &Game{turn: turn, board: b.Clone()}
}

// Turn returns the side to move, or NoColor once the game is over.
func (g *Game) Turn() Color { return g.turn }

// SetTurn overrides the side to move. Passing NoColor ends the game.
func (g *Game) SetTurn(c Color) {
	g.turn = c
	g.over = c == NoColor
}

// Over reports whether the game has ended by resignation.
func (g *Game) Over() bool { return g.over || g.turn == NoColor }

// Board returns a copy of the current board.
func (g *Game) Board() *Board { return g.board.Clone() }

// EnPassantPawn returns the square of the pawn that may be taken en passant on this ply.
func (g *Game) EnPassantPawn() (Position, bool) {
	if g.enPassant == nil {
		return Position{}, false
	}
	return *g.enPassant, true
}

// Clone returns an independent copy.
func (g *Game) Clone() *Game {
	c := *g
	c.board = g.board.Clone()
	if g.enPassant != nil {
		ep := *g.enPassant
		c.enPassant = &ep
	}
	return &c
}

// ValidMoves returns the legal moves of the piece at pos regardless of whose
// turn it is. It returns nil when pos is empty.
func (g *Game) ValidMoves(pos Position) []Move {
	piece, ok := g.board.Get(pos)
	if !ok {
		return nil
	}
	valid := make([]Move, 0, 8)
	for _, m := range pieceMoves(g.board, pos, true) {
		switch {
		case isCastle(piece, m):
			if g.castleAllowed(piece.Color, m) {
				valid = append(valid, m)
			}
		case isEnPassant(g.board, piece, m):
			ep, ok := g.EnPassantPawn()
			if ok && ep == NewPosition(m.Start.Row, m.End.Col) && !g.exposesKing(piece.Color, m) {
				valid = append(valid, m)
			}
		default:
			if !g.exposesKing(piece.Color, m) {
				valid = append(valid, m)
			}
		}
	}
	return valid
}

// LegalMoves returns every legal move of color c.
func (g *Game) LegalMoves(c Color) []Move {
	var all []Move
	g.board.each(func(pos Position, p Piece) {
		if p.Color == c {
			all = append(all, g.ValidMoves(pos)...)
		}
	})
	return all
}

// ApplyMove validates m against the side to move and plays it.
func (g *Game) ApplyMove(m Move) error {
	if g.Over() {
		return invalidMove("game is over")
	}
	piece, ok := g.board.Get(m.Start)
	if !ok {
		return invalidMove("no piece at " + m.Start.String())
	}
	if piece.Color != g.turn {
		return invalidMove("not your turn")
	}
	if !containsMove(g.ValidMoves(m.Start), m) {
		return invalidMove("illegal move " + m.String())
	}

	play(g.board, piece, m)

	g.enPassant = nil
	if piece.Type == Pawn && abs(m.End.Row-m.Start.Row) == 2 {
		ep := m.End
		g.enPassant = &ep
	}
	g.turn = g.turn.Opponent()
	return nil
}

// play performs m on b, including the rook of a castle and the pawn taken en passant.
func play(b *Board, piece Piece, m Move) {
	enPassant := isEnPassant(b, piece, m)
	b.relocate(m.Start, m.End, m.Promotion)
	switch {
	case isCastle(piece, m):
		rookFrom, rookTo := castleRook(m)
		b.relocate(rookFrom, rookTo, NoPieceType)
	case enPassant:
		b.Remove(NewPosition(m.Start.Row, m.End.Col))
	}
}

// IsInCheck reports whether c's king is attacked. A side without a king is never in check.
func (g *Game) IsInCheck(c Color) bool { return inCheck(g.board, c) }

// IsInCheckmate reports check with no legal reply.
func (g *Game) IsInCheckmate(c Color) bool {
	return g.IsInCheck(c) && g.noLegalMoves(c)
}

// IsInStalemate reports no legal move while not in check.
func (g *Game) IsInStalemate(c Color) bool {
	return !g.IsInCheck(c) && g.noLegalMoves(c)
}

// Resign ends the game. Participant checks live in the session layer.
func (g *Game) Resign() {
	g.turn = NoColor
	g.over = true
}

func (g *Game) noLegalMoves(c Color) bool {
	if king, ok := g.board.find(NewPiece(c, King)); ok && len(g.ValidMoves(king)) > 0 {
		return false
	}
	found := false
	g.board.each(func(pos Position, p Piece) {
		if found || p.Color != c {
			return
		}
		found = len(g.ValidMoves(pos)) > 0
	})
	return !found
}

// exposesKing plays m on a scratch board and reports whether c is then in check.
func (g *Game) exposesKing(c Color, m Move) bool {
	scratch := *g.board
	piece, _ := scratch.Get(m.Start)
	play(&scratch, piece, m)
	return inCheck(&scratch, c)
}

// castleAllowed walks the king from its square to the destination on a scratch
// board, rejecting the castle if the king is in check on any square of the way.
// Every square between king and rook must be empty.
func (g *Game) castleAllowed(c Color, m Move) bool {
	rookFrom, _ := castleRook(m)
	dir := sign(rookFrom.Col - m.Start.Col)
	for col := m.Start.Col + dir; col != rookFrom.Col; col += dir {
		if _, occupied := g.board.Get(NewPosition(m.Start.Row, col)); occupied {
			return false
		}
	}
	scratch := *g.board
	king, _ := scratch.Get(m.Start)
	scratch.Remove(m.Start)
	for col := m.Start.Col; ; col += dir {
		sq := NewPosition(m.Start.Row, col)
		scratch.Set(sq, king)
		if inCheck(&scratch, c) {
			return false
		}
		scratch.Remove(sq)
		if col == m.End.Col {
			return true
		}
	}
}

func inCheck(b *Board, c Color) bool {
	king, ok := b.find(NewPiece(c, King))
	if !ok {
		return false
	}
	return attacked(b, king, c.Opponent())
}

func isCastle(p Piece, m Move) bool {
	return p.Type == King && m.Start.Row == m.End.Row && abs(m.End.Col-m.Start.Col) == 2
}

// castleRook returns where the castling rook starts and lands.
func castleRook(m Move) (from, to Position) {
	row := m.Start.Row
	if m.End.Col > m.Start.Col {
		return NewPosition(row, 8), NewPosition(row, 6)
	}
	return NewPosition(row, 1), NewPosition(row, 4)
}

// isEnPassant reports a diagonal pawn move onto an empty square.
func isEnPassant(b *Board, p Piece, m Move) bool {
	if p.Type != Pawn || m.Start.Col == m.End.Col {
		return false
	}
	_, occupied := b.Get(m.End)
	return !occupied
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

type gameJSON struct {
	Turn      Color     `json:"turn"`
	GameOver  bool      `json:"gameOver"`
	Board     []string  `json:"board"`
	Moved     uint64    `json:"moved,string"`
	EnPassant *Position `json:"enPassant,omitempty"`
}

// MarshalJSON stores the full state needed to resume play: placement, turn,
// moved squares and the en passant window.
func (g *Game) MarshalJSON() ([]byte, error) {
	return json.Marshal(gameJSON{
		Turn:      g.turn,
		GameOver:  g.Over(),
		Board:     g.board.Rows(),
		Moved:     g.board.moved,
		EnPassant: g.enPassant,
	})
}

func (g *Game) UnmarshalJSON(data []byte) error {
	var raw gameJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	b, err := ParseRows(raw.Board)
	if err != nil {
		return err
	}
	b.moved = raw.Moved
	*g = Game{turn: raw.Turn, board: b, over: raw.GameOver || raw.Turn == NoColor, enPassant: raw.EnPassant}
	return nil
}
