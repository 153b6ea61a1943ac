package chess

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidMove is returned for every rejected move; the wrapped text carries the reason.
var ErrInvalidMove = errors.New("invalid move")

func invalidMove(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidMove, reason)
}

// Color identifies a side. NoColor doubles as "nobody to move" once a game is over.
type Color uint8

const (
	NoColor Color = iota
	White
	Black
)

// Opponent returns the other side. NoColor has no opponent.
func (c Color) Opponent() Color {
	switch c {
	case White:
		return Black
	case Black:
		return White
	default:
		return NoColor
	}
}

func (c Color) String() string {
	switch c {
	case White:
		return "WHITE"
	case Black:
		return "BLACK"
	default:
		return ""
	}
}

func (c Color) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Color) UnmarshalText(b []byte) error {
	v, err := ParseColor(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ParseColor accepts WHITE/BLACK in any case plus the w/b shorthands. The empty string is NoColor.
func ParseColor(s string) (Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return NoColor, nil
	case "white", "w":
		return White, nil
	case "black", "b":
		return Black, nil
	default:
		return NoColor, fmt.Errorf("unknown color %q", s)
	}
}

// PieceType is the kind of a piece. NoPieceType marks an empty square or an absent promotion.
type PieceType uint8

const (
	NoPieceType PieceType = iota
	King
	Queen
	Bishop
	Knight
	Rook
	Pawn
)

var pieceTypeNames = [...]string{"", "KING", "QUEEN", "BISHOP", "KNIGHT", "ROOK", "PAWN"}

// promotionTypes lists the types a pawn may become, in enumeration order.
var promotionTypes = [...]PieceType{Queen, Rook, Bishop, Knight}

func (t PieceType) String() string {
	if int(t) < len(pieceTypeNames) {
		return pieceTypeNames[t]
	}
	return ""
}

func (t PieceType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *PieceType) UnmarshalText(b []byte) error {
	v, err := ParsePieceType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParsePieceType accepts full names (QUEEN) or single letters (q).
func ParsePieceType(s string) (PieceType, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if v == "" {
		return NoPieceType, nil
	}
	for i, name := range pieceTypeNames {
		if i > 0 && name == v {
			return PieceType(i), nil
		}
	}
	if len(v) == 1 {
		if t, ok := letterTypes[v[0]]; ok {
			return t, nil
		}
	}
	return NoPieceType, fmt.Errorf("unknown piece type %q", s)
}

var letterTypes = map[byte]PieceType{'K': King, 'Q': Queen, 'B': Bishop, 'N': Knight, 'R': Rook, 'P': Pawn}

func (t PieceType) letter() byte {
	for l, pt := range letterTypes {
		if pt == t {
			return l
		}
	}
	return '.'
}

// Piece is a plain value: two pieces of the same color and type are interchangeable.
// Whether a piece has moved is tracked per square on the Board.
type Piece struct {
	Color Color     `json:"color"`
	Type  PieceType `json:"type"`
}

// NewPiece is shorthand for Piece{Color: c, Type: t}.
func NewPiece(c Color, t PieceType) Piece { return Piece{Color: c, Type: t} }

// IsZero reports whether p represents an empty square.
func (p Piece) IsZero() bool { return p.Type == NoPieceType }

// Letter returns the FEN-style letter: upper case for white, lower case for black.
func (p Piece) Letter() byte {
	if p.IsZero() {
		return '.'
	}
	l := p.Type.letter()
	if p.Color == Black {
		l += 'a' - 'A'
	}
	return l
}

func pieceFromLetter(l byte) (Piece, bool) {
	if l == '.' {
		return Piece{}, true
	}
	c := White
	if l >= 'a' && l <= 'z' {
		c = Black
		l -= 'a' - 'A'
	}
	t, ok := letterTypes[l]
	if !ok {
		return Piece{}, false
	}
	return Piece{Color: c, Type: t}, true
}

// Position is a 1-indexed (row, column) square. Row 1 is white's back rank, column 1 is the a-file.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// NewPosition is shorthand for Position{Row: row, Col: col}.
func NewPosition(row, col int) Position { return Position{Row: row, Col: col} }

// Valid reports whether p lies on the board.
func (p Position) Valid() bool { return p.Row >= 1 && p.Row <= 8 && p.Col >= 1 && p.Col <= 8 }

func (p Position) offset(dr, dc int) Position { return Position{Row: p.Row + dr, Col: p.Col + dc} }

// String renders algebraic coordinates such as "e4".
func (p Position) String() string {
	if !p.Valid() {
		return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
	}
	return string([]byte{byte('a' + p.Col - 1), byte('0' + p.Row)})
}

// ParsePosition reads algebraic coordinates such as "e4".
func ParsePosition(s string) (Position, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if len(v) != 2 {
		return Position{}, fmt.Errorf("bad square %q", s)
	}
	p := Position{Row: int(v[1]-'0'), Col: int(v[0]-'a') + 1}
	if !p.Valid() {
		return Position{}, fmt.Errorf("bad square %q", s)
	}
	return p, nil
}

// Move is compared by value: start, end and promotion.
type Move struct {
	Start     Position  `json:"startPosition"`
	End       Position  `json:"endPosition"`
	Promotion PieceType `json:"promotionPiece,omitempty"`
}

// NewMove builds a move without promotion.
func NewMove(start, end Position) Move { return Move{Start: start, End: end} }

// String renders coordinate notation such as "e2e4" or "e7e8q".
func (m Move) String() string {
	s := m.Start.String() + m.End.String()
	if m.Promotion != NoPieceType {
		s += strings.ToLower(string(m.Promotion.letter()))
	}
	return s
}

// ParseMove reads coordinate notation such as "e2e4" or "e7e8q".
func ParseMove(s string) (Move, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if len(v) != 4 && len(v) != 5 {
		return Move{}, fmt.Errorf("bad move %q", s)
	}
	start, err := ParsePosition(v[0:2])
	if err != nil {
		return Move{}, err
	}
	end, err := ParsePosition(v[2:4])
	if err != nil {
		return Move{}, err
	}
	m := Move{Start: start, End: end}
	if len(v) == 5 {
		t, err := ParsePieceType(v[4:])
		if err != nil {
			return Move{}, err
		}
		if t == King || t == Pawn {
			return Move{}, fmt.Errorf("bad promotion %q", s)
		}
		m.Promotion = t
	}
	return m, nil
}

// containsMove reports whether m is present in moves.
func containsMove(moves []Move, m Move) bool {
	for _, mv := range moves {
		if mv == m {
			return true
		}
	}
	return false
}
