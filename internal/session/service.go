// Package session is the authoritative game registry and the live-session
// protocol: create, join, list, connect, move, leave and resign.
//
// Mutations of one game are serialized by a per-game lock that is held until
// the resulting events are queued, so every watcher sees them in commit order.
// Different games never contend.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/park285/cheese-chess/internal/chess"
	"github.com/park285/cheese-chess/internal/domain"
	"github.com/park285/cheese-chess/internal/fanout"
	"github.com/park285/cheese-chess/internal/msgcat"
	"github.com/park285/cheese-chess/internal/store"
	"github.com/park285/cheese-chess/pkg/chessdto"
)

// Resolver turns a token into the acting user.
type Resolver interface {
	Validate(ctx context.Context, token string) (*domain.AuthTicket, error)
}

type Service struct {
	games  store.GameStore
	auth   Resolver
	hub    *fanout.Hub
	msgs   *msgcat.Catalog
	logger *zap.Logger

	locksMu sync.Mutex
	locks   map[int]*gameLock
}

type gameLock struct {
	mu   sync.Mutex
	refs int
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithCatalog(c *msgcat.Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.msgs = c
		}
	}
}

func NewService(games store.GameStore, auth Resolver, hub *fanout.Hub, opts ...Option) *Service {
	s := &Service{
		games:  games,
		auth:   auth,
		hub:    hub,
		logger: zap.NewNop(),
		locks:  make(map[int]*gameLock),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.msgs == nil {
		s.msgs = msgcat.Default()
	}
	if s.hub == nil {
		s.hub = fanout.NewHub(s.logger)
	}
	return s
}

// lockGame blocks until the caller owns gameID. Entries are dropped once no
// caller holds or waits for them.
func (s *Service) lockGame(gameID int) (unlock func()) {
	s.locksMu.Lock()
	l := s.locks[gameID]
	if l == nil {
		l = &gameLock{}
		s.locks[gameID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, gameID)
		}
		s.locksMu.Unlock()
	}
}

// CreateGame stores a fresh unjoined game and returns its id.
func (s *Service) CreateGame(ctx context.Context, token, name string) (int, error) {
	actor, err := s.auth.Validate(ctx, token)
	if err != nil {
		return 0, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("%w: game name is required", domain.ErrInvalidRequest)
	}
	rec, err := s.games.Create(ctx, name)
	if err != nil {
		return 0, err
	}
	s.logger.Info("game_create",
		zap.Int("game_id", rec.ID),
		zap.String("name", rec.Name),
		zap.String("username", actor.Username),
	)
	return rec.ID, nil
}

// Join binds the caller to color. The incumbent rejoining its own slot is a no-op.
func (s *Service) Join(ctx context.Context, token string, gameID int, color chess.Color) error {
	actor, err := s.auth.Validate(ctx, token)
	if err != nil {
		return err
	}
	if color != chess.White && color != chess.Black {
		return fmt.Errorf("%w: player color must be WHITE or BLACK", domain.ErrInvalidRequest)
	}
	unlock := s.lockGame(gameID)
	defer unlock()
	if _, err := s.games.Update(ctx, gameID, func(r *domain.GameRecord) error {
		return r.Bind(color, actor.Username)
	}); err != nil {
		return err
	}
	s.logger.Info("game_join",
		zap.Int("game_id", gameID),
		zap.String("username", actor.Username),
		zap.Stringer("color", color),
	)
	return nil
}

// ListGames returns every game in id order.
func (s *Service) ListGames(ctx context.Context, token string) ([]*domain.GameRecord, error) {
	if _, err := s.auth.Validate(ctx, token); err != nil {
		return nil, err
	}
	return s.games.List(ctx)
}

// Game returns one record, for read-only surfaces such as the board image.
func (s *Service) Game(ctx context.Context, token string, gameID int) (*domain.GameRecord, error) {
	if _, err := s.auth.Validate(ctx, token); err != nil {
		return nil, err
	}
	return s.games.Load(ctx, gameID)
}

// Clear wipes the registry. Live handles stay subscribed; ids keep counting.
func (s *Service) Clear(ctx context.Context) error {
	return s.games.Clear(ctx)
}

// Connect subscribes h to gameID, sends it the current board and tells the
// other watchers who arrived and in which role.
func (s *Service) Connect(ctx context.Context, token string, gameID int, h fanout.Handle) error {
	if h == nil {
		return fmt.Errorf("%w: no connection to subscribe", domain.ErrInvalidRequest)
	}
	actor, err := s.auth.Validate(ctx, token)
	if err != nil {
		return err
	}
	unlock := s.lockGame(gameID)
	defer unlock()

	rec, err := s.games.Load(ctx, gameID)
	if err != nil {
		return err
	}
	s.hub.Add(gameID, h)
	s.send(h, chessdto.LoadGame(Snapshot(rec)))

	role := rec.RoleOf(actor.Username)
	var note string
	if role == domain.RoleObserver {
		note = s.render(msgcat.KeyJoinedObserver, map[string]any{"Username": actor.Username})
	} else {
		note = s.render(msgcat.KeyJoinedPlayer, map[string]any{"Username": actor.Username, "Role": string(role)})
	}
	s.broadcast(gameID, h, chessdto.Notification(note))
	s.logger.Info("ws_connect",
		zap.Int("game_id", gameID),
		zap.String("username", actor.Username),
		zap.String("role", string(role)),
	)
	return nil
}

// MakeMove validates and plays m for the caller, persists the game and then
// fans out: the new board to all, the move to everyone but the mover, and
// finally checkmate, stalemate or check of the side now to move, in that order
// of precedence.
func (s *Service) MakeMove(ctx context.Context, token string, gameID int, m chess.Move, h fanout.Handle) error {
	actor, err := s.auth.Validate(ctx, token)
	if err != nil {
		return err
	}
	unlock := s.lockGame(gameID)
	defer unlock()

	var moved chess.Piece
	rec, err := s.games.Update(ctx, gameID, func(r *domain.GameRecord) error {
		g := r.Game
		if g.Over() {
			return fmt.Errorf("%w: game is over", domain.ErrInvalidMove)
		}
		if r.Slot(g.Turn()) != actor.Username {
			return fmt.Errorf("%w: not your turn", domain.ErrUnauthorized)
		}
		if err := g.ApplyMove(m); err != nil {
			return err
		}
		moved, _ = g.Board().Get(m.End)
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("game_move",
		zap.Int("game_id", gameID),
		zap.String("username", actor.Username),
		zap.String("move", m.String()),
	)

	s.broadcast(gameID, nil, chessdto.LoadGame(Snapshot(rec)))

	data := map[string]any{
		"Username": actor.Username,
		"Piece":    moved.Type.String(),
		"From":     m.Start.String(),
		"To":       m.End.String(),
	}
	key := msgcat.KeyMoved
	if m.Promotion != chess.NoPieceType {
		key = msgcat.KeyPromoted
	}
	s.broadcast(gameID, h, chessdto.Notification(s.render(key, data)))

	side := rec.Game.Turn()
	status := map[string]any{"Username": playerName(rec, side), "Color": side.String()}
	switch {
	case rec.Game.IsInCheckmate(side):
		s.broadcast(gameID, nil, chessdto.Notification(s.render(msgcat.KeyCheckmate, status)))
	case rec.Game.IsInStalemate(side):
		s.broadcast(gameID, nil, chessdto.Notification(s.render(msgcat.KeyStalemate, status)))
	case rec.Game.IsInCheck(side):
		s.broadcast(gameID, nil, chessdto.Notification(s.render(msgcat.KeyCheck, status)))
	}
	return nil
}

// Leave frees any color slot the caller holds, tells the others and
// unsubscribes h. The game itself goes on.
func (s *Service) Leave(ctx context.Context, token string, gameID int, h fanout.Handle) error {
	actor, err := s.auth.Validate(ctx, token)
	if err != nil {
		return err
	}
	unlock := s.lockGame(gameID)
	defer unlock()

	held := false
	if _, err := s.games.Update(ctx, gameID, func(r *domain.GameRecord) error {
		held = r.Unbind(actor.Username)
		return nil
	}); err != nil {
		return err
	}
	s.broadcast(gameID, h, chessdto.Notification(s.render(msgcat.KeyLeft, map[string]any{"Username": actor.Username})))
	if h != nil {
		s.hub.Remove(gameID, h)
	}
	s.logger.Info("game_leave",
		zap.Int("game_id", gameID),
		zap.String("username", actor.Username),
		zap.Bool("held_slot", held),
	)
	return nil
}

// Resign ends the game for a participant. Observers and finished games are rejected.
func (s *Service) Resign(ctx context.Context, token string, gameID int, h fanout.Handle) error {
	actor, err := s.auth.Validate(ctx, token)
	if err != nil {
		return err
	}
	unlock := s.lockGame(gameID)
	defer unlock()

	var loser chess.Color
	rec, err := s.games.Update(ctx, gameID, func(r *domain.GameRecord) error {
		loser = r.ColorOf(actor.Username)
		if loser == chess.NoColor {
			return fmt.Errorf("%w: observers cannot resign", domain.ErrInvalidMove)
		}
		if r.Game.Over() {
			return fmt.Errorf("%w: game is already over", domain.ErrInvalidMove)
		}
		r.Game.Resign()
		return nil
	})
	if err != nil {
		return err
	}
	winner := loser.Opponent()
	note := s.render(msgcat.KeyResigned, map[string]any{"Username": actor.Username, "Winner": playerName(rec, winner)})
	s.broadcast(gameID, nil, chessdto.Notification(note))
	s.logger.Info("game_resign",
		zap.Int("game_id", gameID),
		zap.String("username", actor.Username),
		zap.Stringer("color", loser),
	)
	return nil
}

// playerName is the username holding c, or the color name when the slot is free.
func playerName(rec *domain.GameRecord, c chess.Color) string {
	if name := rec.Slot(c); name != "" {
		return name
	}
	return c.String()
}

func (s *Service) render(key string, data map[string]any) string {
	text, err := s.msgs.Render(key, data)
	if err != nil {
		s.logger.Error("msgcat_render_failed", zap.String("key", key), zap.Error(err))
		return key
	}
	return text
}

func (s *Service) encode(ev chessdto.Event) []byte {
	b, err := json.Marshal(ev)
	if err != nil {
		// events are plain structs; this only fires on a programming error
		s.logger.Error("event_encode_failed", zap.String("type", string(ev.ServerMessageType)), zap.Error(err))
		return nil
	}
	return b
}

func (s *Service) broadcast(gameID int, exclude fanout.Handle, ev chessdto.Event) {
	if payload := s.encode(ev); payload != nil {
		s.hub.Broadcast(gameID, exclude, payload)
	}
}

func (s *Service) send(h fanout.Handle, ev chessdto.Event) {
	if h == nil {
		return
	}
	payload := s.encode(ev)
	if payload == nil {
		return
	}
	if err := h.Send(payload); err != nil {
		s.logger.Warn("fanout_deliver_error", zap.String("type", string(ev.ServerMessageType)), zap.Error(err))
	}
}
