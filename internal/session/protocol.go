package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/park285/cheese-chess/internal/chess"
	"github.com/park285/cheese-chess/internal/domain"
	"github.com/park285/cheese-chess/internal/fanout"
	"github.com/park285/cheese-chess/pkg/chessdto"
)

// Dispatch runs one inbound command for the connection h. A rejected command
// is answered with a single ERROR event to h alone; the error is also returned
// so the transport can log it.
func (s *Service) Dispatch(ctx context.Context, cmd chessdto.Command, h fanout.Handle) error {
	err := s.dispatch(ctx, cmd, h)
	if err != nil {
		s.send(h, chessdto.Error(domain.Message(err)))
	}
	return err
}

func (s *Service) dispatch(ctx context.Context, cmd chessdto.Command, h fanout.Handle) error {
	switch cmd.CommandType {
	case chessdto.CommandConnect:
		return s.Connect(ctx, cmd.AuthToken, cmd.GameID, h)
	case chessdto.CommandMakeMove:
		if cmd.Move == nil {
			return fmt.Errorf("%w: move is required", domain.ErrInvalidRequest)
		}
		m, err := MoveFromDTO(*cmd.Move)
		if err != nil {
			return err
		}
		return s.MakeMove(ctx, cmd.AuthToken, cmd.GameID, m, h)
	case chessdto.CommandLeave:
		return s.Leave(ctx, cmd.AuthToken, cmd.GameID, h)
	case chessdto.CommandResign:
		return s.Resign(ctx, cmd.AuthToken, cmd.GameID, h)
	default:
		return fmt.Errorf("%w: unknown command type %q", domain.ErrInvalidRequest, cmd.CommandType)
	}
}

// MoveFromDTO checks coordinates and the promotion piece before the engine sees the move.
func MoveFromDTO(dto chessdto.Move) (chess.Move, error) {
	start := chess.NewPosition(dto.StartPosition.Row, dto.StartPosition.Col)
	end := chess.NewPosition(dto.EndPosition.Row, dto.EndPosition.Col)
	if !start.Valid() || !end.Valid() {
		return chess.Move{}, fmt.Errorf("%w: position off the board", domain.ErrInvalidRequest)
	}
	m := chess.NewMove(start, end)
	if dto.PromotionPiece != nil && strings.TrimSpace(*dto.PromotionPiece) != "" {
		t, err := chess.ParsePieceType(*dto.PromotionPiece)
		if err != nil || t == chess.King || t == chess.Pawn {
			return chess.Move{}, fmt.Errorf("%w: bad promotion piece %q", domain.ErrInvalidRequest, *dto.PromotionPiece)
		}
		m.Promotion = t
	}
	return m, nil
}

// MoveToDTO is the inverse of MoveFromDTO.
func MoveToDTO(m chess.Move) chessdto.Move {
	dto := chessdto.Move{
		StartPosition: chessdto.Position{Row: m.Start.Row, Col: m.Start.Col},
		EndPosition:   chessdto.Position{Row: m.End.Row, Col: m.End.Col},
	}
	if m.Promotion != chess.NoPieceType {
		name := m.Promotion.String()
		dto.PromotionPiece = &name
	}
	return dto
}

// Snapshot renders rec for LOAD_GAME. The check flags describe the side to move.
func Snapshot(rec *domain.GameRecord) *chessdto.GameSnapshot {
	g := rec.Game
	side := g.Turn()
	snap := &chessdto.GameSnapshot{
		GameID:        rec.ID,
		GameName:      rec.Name,
		WhiteUsername: rec.WhiteUser,
		BlackUsername: rec.BlackUser,
		Turn:          side.String(),
		GameOver:      g.Over(),
		Board:         g.Board().Rows(),
	}
	if side != chess.NoColor {
		snap.Check = g.IsInCheck(side)
		snap.Checkmate = snap.Check && g.IsInCheckmate(side)
		snap.Stalemate = !snap.Check && g.IsInStalemate(side)
	}
	return snap
}

// Summary drops the board for game listings.
func Summary(rec *domain.GameRecord) chessdto.GameSummary {
	return chessdto.GameSummary{
		GameID:        rec.ID,
		WhiteUsername: rec.WhiteUser,
		BlackUsername: rec.BlackUser,
		GameName:      rec.Name,
	}
}
