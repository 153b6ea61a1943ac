package chess

import (
	"fmt"
	"strings"
)

// Board is an 8x8 grid of optional pieces. The zero value is an empty board.
//
// moved keeps one bit per square that a piece has left or landed on. King and
// rook castling eligibility is read from it instead of from the pieces, so a
// promoted rook can never inherit castling rights.
type Board struct {
	squares [8][8]Piece
	moved   uint64
}

// NewBoard returns a board in the standard initial arrangement.
func NewBoard() *Board {
	b := &Board{}
	b.Reset()
	return b
}

var backRank = [8]PieceType{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}

// Reset places the standard initial arrangement and forgets all moves.
func (b *Board) Reset() {
	*b = Board{}
	for col := 1; col <= 8; col++ {
		b.Set(NewPosition(1, col), NewPiece(White, backRank[col-1]))
		b.Set(NewPosition(2, col), NewPiece(White, Pawn))
		b.Set(NewPosition(7, col), NewPiece(Black, Pawn))
		b.Set(NewPosition(8, col), NewPiece(Black, backRank[col-1]))
	}
}

// Get returns the piece at pos. Off-board positions read as empty.
func (b *Board) Get(pos Position) (Piece, bool) {
	if !pos.Valid() {
		return Piece{}, false
	}
	p := b.squares[pos.Row-1][pos.Col-1]
	return p, !p.IsZero()
}

// Set places p at pos; the zero Piece empties the square. Off-board positions are ignored.
func (b *Board) Set(pos Position, p Piece) {
	if !pos.Valid() {
		return
	}
	b.squares[pos.Row-1][pos.Col-1] = p
}

// Remove empties pos.
func (b *Board) Remove(pos Position) { b.Set(pos, Piece{}) }

// HasMoved reports whether any piece has left or landed on pos since the last Reset.
func (b *Board) HasMoved(pos Position) bool {
	if !pos.Valid() {
		return false
	}
	return b.moved&squareBit(pos) != 0
}

// MarkMoved flags pos as touched. Used when setting up positions by hand.
func (b *Board) MarkMoved(pos Position) {
	if pos.Valid() {
		b.moved |= squareBit(pos)
	}
}

func squareBit(pos Position) uint64 { return 1 << uint((pos.Row-1)*8+pos.Col-1) }

// Clone returns an independent copy.
func (b *Board) Clone() *Board {
	c := *b
	return &c
}

// Equal compares piece placement and moved flags.
func (b *Board) Equal(o *Board) bool {
	if b == nil || o == nil {
		return b == o
	}
	return *b == *o
}

// Count returns the number of pieces of color c.
func (b *Board) Count(c Color) int {
	n := 0
	b.each(func(_ Position, p Piece) {
		if p.Color == c {
			n++
		}
	})
	return n
}

// each visits every occupied square from a1 to h8.
func (b *Board) each(fn func(Position, Piece)) {
	for row := 1; row <= 8; row++ {
		for col := 1; col <= 8; col++ {
			if p := b.squares[row-1][col-1]; !p.IsZero() {
				fn(NewPosition(row, col), p)
			}
		}
	}
}

func (b *Board) find(target Piece) (Position, bool) {
	for row := 1; row <= 8; row++ {
		for col := 1; col <= 8; col++ {
			if b.squares[row-1][col-1] == target {
				return NewPosition(row, col), true
			}
		}
	}
	return Position{}, false
}

// relocate moves whatever stands on from onto to, promoting when requested,
// and marks both squares as moved. The rook of a castle and the pawn taken en
// passant are handled by the caller.
func (b *Board) relocate(from, to Position, promotion PieceType) {
	p, _ := b.Get(from)
	if promotion != NoPieceType {
		p.Type = promotion
	}
	b.Remove(from)
	b.Set(to, p)
	b.MarkMoved(from)
	b.MarkMoved(to)
}

// Rows renders the placement as eight strings, row 8 first, using FEN letters
// and '.' for empty squares.
func (b *Board) Rows() []string {
	rows := make([]string, 0, 8)
	for row := 8; row >= 1; row-- {
		var sb strings.Builder
		for col := 1; col <= 8; col++ {
			sb.WriteByte(b.squares[row-1][col-1].Letter())
		}
		rows = append(rows, sb.String())
	}
	return rows
}

// String is the Rows joined by newlines.
func (b *Board) String() string { return strings.Join(b.Rows(), "\n") }

// ParseRows is the inverse of Rows. The moved flags start cleared.
func ParseRows(rows []string) (*Board, error) {
	if len(rows) != 8 {
		return nil, fmt.Errorf("board needs 8 rows, got %d", len(rows))
	}
	b := &Board{}
	for i, line := range rows {
		if len(line) != 8 {
			return nil, fmt.Errorf("board row %d: want 8 squares, got %d", 8-i, len(line))
		}
		row := 8 - i
		for col := 1; col <= 8; col++ {
			p, ok := pieceFromLetter(line[col-1])
			if !ok {
				return nil, fmt.Errorf("board row %d: bad square %q", row, line[col-1])
			}
			b.Set(NewPosition(row, col), p)
		}
	}
	return b, nil
}
