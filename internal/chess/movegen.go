package chess

// Pseudo-legal move generation. Nothing here knows whose turn it is or whether
// a move exposes the mover's king; Game filters for that.

type direction struct{ dr, dc int }

var (
	diagonals  = []direction{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
	orthogonal = []direction{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	allDirs    = append(append([]direction{}, diagonals...), orthogonal...)

	knightJumps = []direction{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
)

// PieceMoves returns the pseudo-legal moves of the piece at pos, castling and
// en passant candidates included. It returns nil for an empty square.
func PieceMoves(b *Board, pos Position) []Move {
	return pieceMoves(b, pos, true)
}

// pieceMoves skips the castling candidates when withCastling is false; attack
// detection uses that form since a castle never captures.
func pieceMoves(b *Board, pos Position, withCastling bool) []Move {
	p, ok := b.Get(pos)
	if !ok {
		return nil
	}
	moves := make([]Move, 0, 16)
	switch p.Type {
	case Bishop:
		moves = slide(b, pos, p.Color, diagonals, moves)
	case Rook:
		moves = slide(b, pos, p.Color, orthogonal, moves)
	case Queen:
		moves = slide(b, pos, p.Color, allDirs, moves)
	case Knight:
		moves = step(b, pos, p.Color, knightJumps, moves)
	case King:
		moves = step(b, pos, p.Color, allDirs, moves)
		if withCastling {
			moves = castlingCandidates(b, pos, p.Color, moves)
		}
	case Pawn:
		moves = pawnMoves(b, pos, p.Color, moves)
	}
	return moves
}

func slide(b *Board, from Position, c Color, dirs []direction, moves []Move) []Move {
	for _, d := range dirs {
		to := from.offset(d.dr, d.dc)
		for to.Valid() {
			other, occupied := b.Get(to)
			if !occupied {
				moves = append(moves, NewMove(from, to))
				to = to.offset(d.dr, d.dc)
				continue
			}
			if other.Color != c {
				moves = append(moves, NewMove(from, to))
			}
			break
		}
	}
	return moves
}

func step(b *Board, from Position, c Color, offsets []direction, moves []Move) []Move {
	for _, d := range offsets {
		to := from.offset(d.dr, d.dc)
		if !to.Valid() {
			continue
		}
		if other, occupied := b.Get(to); occupied && other.Color == c {
			continue
		}
		moves = append(moves, NewMove(from, to))
	}
	return moves
}

// homeRow is the back rank of c.
func homeRow(c Color) int {
	if c == Black {
		return 8
	}
	return 1
}

// castlingCandidates adds the two-square king shifts when the king stands on
// its unmoved home square and the matching rook is in its unmoved corner.
// Blocked paths and attacked squares are rejected by Game.
func castlingCandidates(b *Board, from Position, c Color, moves []Move) []Move {
	row := homeRow(c)
	if from != NewPosition(row, 5) || b.HasMoved(from) {
		return moves
	}
	for _, side := range []struct{ rookCol, kingCol int }{{8, 7}, {1, 3}} {
		corner := NewPosition(row, side.rookCol)
		rook, ok := b.Get(corner)
		if !ok || rook != NewPiece(c, Rook) || b.HasMoved(corner) {
			continue
		}
		moves = append(moves, NewMove(from, NewPosition(row, side.kingCol)))
	}
	return moves
}

type pawnRules struct {
	forward      int
	startRow     int
	promoRow     int
	enPassantRow int
}

func pawnRulesFor(c Color) pawnRules {
	if c == Black {
		return pawnRules{forward: -1, startRow: 7, promoRow: 1, enPassantRow: 4}
	}
	return pawnRules{forward: 1, startRow: 2, promoRow: 8, enPassantRow: 5}
}

func pawnMoves(b *Board, from Position, c Color, moves []Move) []Move {
	r := pawnRulesFor(c)

	one := from.offset(r.forward, 0)
	if _, blocked := b.Get(one); one.Valid() && !blocked {
		moves = addPawnMove(moves, from, one, r.promoRow)
		two := one.offset(r.forward, 0)
		if _, blocked := b.Get(two); from.Row == r.startRow && !blocked {
			moves = append(moves, NewMove(from, two))
		}
	}

	for _, dc := range []int{-1, 1} {
		to := from.offset(r.forward, dc)
		if !to.Valid() {
			continue
		}
		if other, occupied := b.Get(to); occupied {
			if other.Color != c {
				moves = addPawnMove(moves, from, to, r.promoRow)
			}
			continue
		}
		// En passant candidate: an enemy pawn sits beside us on the fifth rank.
		// Game decides whether it just made its double step.
		if from.Row != r.enPassantRow {
			continue
		}
		if side, ok := b.Get(from.offset(0, dc)); ok && side == NewPiece(c.Opponent(), Pawn) {
			moves = append(moves, NewMove(from, to))
		}
	}
	return moves
}

func addPawnMove(moves []Move, from, to Position, promoRow int) []Move {
	if to.Row != promoRow {
		return append(moves, NewMove(from, to))
	}
	for _, t := range promotionTypes {
		moves = append(moves, Move{Start: from, End: to, Promotion: t})
	}
	return moves
}

// attacked reports whether any piece of color by has a pseudo-legal move ending on target.
func attacked(b *Board, target Position, by Color) bool {
	hit := false
	b.each(func(pos Position, p Piece) {
		if hit || p.Color != by {
			return
		}
		for _, m := range pieceMoves(b, pos, false) {
			if m.End == target {
				hit = true
				return
			}
		}
	})
	return hit
}
