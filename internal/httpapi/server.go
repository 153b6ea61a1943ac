// Package httpapi serves the account and game-registry REST surface over fasthttp.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/cheese-chess/internal/chess"
	"github.com/park285/cheese-chess/internal/domain"
	"github.com/park285/cheese-chess/internal/render"
	"github.com/park285/cheese-chess/internal/session"
	"github.com/park285/cheese-chess/pkg/chessdto"
)

type Accounts interface {
	Register(ctx context.Context, username, password, email string) (*domain.AuthTicket, error)
	Login(ctx context.Context, username, password string) (*domain.AuthTicket, error)
	Logout(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

type Games interface {
	CreateGame(ctx context.Context, token, name string) (int, error)
	Join(ctx context.Context, token string, gameID int, color chess.Color) error
	ListGames(ctx context.Context, token string) ([]*domain.GameRecord, error)
	Game(ctx context.Context, token string, gameID int) (*domain.GameRecord, error)
	Clear(ctx context.Context) error
}

type Server struct {
	accounts Accounts
	games    Games
	renderer render.BoardRenderer
	logger   *zap.Logger
	timeout  time.Duration
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithRenderer(r render.BoardRenderer) Option {
	return func(s *Server) {
		if r != nil {
			s.renderer = r
		}
	}
}

// WithTimeout bounds each request's work, storage calls included.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func NewServer(accounts Accounts, games Games, opts ...Option) *Server {
	s := &Server{
		accounts: accounts,
		games:    games,
		renderer: render.NewSVGBoardRenderer(0),
		logger:   zap.NewNop(),
		timeout:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type handlerFunc func(ctx context.Context, rc *fasthttp.RequestCtx) error

// Handler is the fasthttp entry point.
func (s *Server) Handler(rc *fasthttp.RequestCtx) {
	start := time.Now()
	method := string(rc.Method())
	path := string(rc.Path())

	h := s.route(method, path)
	if h == nil {
		writeError(rc, fasthttp.StatusNotFound, "Error: not found")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		err := h(ctx, rc)
		cancel()
		if err != nil {
			writeError(rc, StatusFor(err), domain.Message(err))
			if !domain.IsClientError(err) {
				s.logger.Error("http_handler_error", zap.String("path", path), zap.Error(err))
			}
		}
	}

	s.logger.Info("http_request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", rc.Response.StatusCode()),
		zap.Duration("elapsed", time.Since(start)),
	)
}

func (s *Server) route(method, path string) handlerFunc {
	switch path {
	case "/user":
		if method == fasthttp.MethodPost {
			return s.register
		}
	case "/session":
		switch method {
		case fasthttp.MethodPost:
			return s.login
		case fasthttp.MethodDelete:
			return s.logout
		}
	case "/game":
		switch method {
		case fasthttp.MethodGet:
			return s.listGames
		case fasthttp.MethodPost:
			return s.createGame
		case fasthttp.MethodPut:
			return s.joinGame
		}
	case "/game/board.png":
		if method == fasthttp.MethodGet {
			return s.boardImage
		}
	case "/db":
		if method == fasthttp.MethodDelete {
			return s.clear
		}
	}
	return nil
}

// StatusFor maps the domain error taxonomy onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrInvalidMove):
		return fasthttp.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return fasthttp.StatusUnauthorized
	case errors.Is(err, domain.ErrAlreadyTaken):
		return fasthttp.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return fasthttp.StatusNotFound
	default:
		return fasthttp.StatusInternalServerError
	}
}

func (s *Server) register(ctx context.Context, rc *fasthttp.RequestCtx) error {
	var req chessdto.RegisterRequest
	if err := decodeBody(rc, &req); err != nil {
		return err
	}
	t, err := s.accounts.Register(ctx, req.Username, req.Password, req.Email)
	if err != nil {
		return err
	}
	return writeJSON(rc, fasthttp.StatusOK, chessdto.AuthResponse{Username: t.Username, AuthToken: t.Token})
}

func (s *Server) login(ctx context.Context, rc *fasthttp.RequestCtx) error {
	var req chessdto.LoginRequest
	if err := decodeBody(rc, &req); err != nil {
		return err
	}
	t, err := s.accounts.Login(ctx, req.Username, req.Password)
	if err != nil {
		return err
	}
	return writeJSON(rc, fasthttp.StatusOK, chessdto.AuthResponse{Username: t.Username, AuthToken: t.Token})
}

func (s *Server) logout(ctx context.Context, rc *fasthttp.RequestCtx) error {
	if err := s.accounts.Logout(ctx, authToken(rc)); err != nil {
		return err
	}
	return writeJSON(rc, fasthttp.StatusOK, struct{}{})
}

func (s *Server) listGames(ctx context.Context, rc *fasthttp.RequestCtx) error {
	recs, err := s.games.ListGames(ctx, authToken(rc))
	if err != nil {
		return err
	}
	out := chessdto.ListGamesResponse{Games: make([]chessdto.GameSummary, 0, len(recs))}
	for _, r := range recs {
		out.Games = append(out.Games, session.Summary(r))
	}
	return writeJSON(rc, fasthttp.StatusOK, out)
}

func (s *Server) createGame(ctx context.Context, rc *fasthttp.RequestCtx) error {
	var req chessdto.CreateGameRequest
	if err := decodeBody(rc, &req); err != nil {
		return err
	}
	id, err := s.games.CreateGame(ctx, authToken(rc), req.GameName)
	if err != nil {
		return err
	}
	return writeJSON(rc, fasthttp.StatusOK, chessdto.CreateGameResponse{GameID: id})
}

func (s *Server) joinGame(ctx context.Context, rc *fasthttp.RequestCtx) error {
	var req chessdto.JoinGameRequest
	if err := decodeBody(rc, &req); err != nil {
		return err
	}
	color, err := chess.ParseColor(req.PlayerColor)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	if err := s.games.Join(ctx, authToken(rc), req.GameID, color); err != nil {
		return err
	}
	return writeJSON(rc, fasthttp.StatusOK, struct{}{})
}

// boardImage renders GET /game/board.png?gameID=N&perspective=white|black[&highlight=e2e4].
func (s *Server) boardImage(ctx context.Context, rc *fasthttp.RequestCtx) error {
	args := rc.QueryArgs()
	id, err := args.GetUint("gameID")
	if err != nil {
		return fmt.Errorf("%w: gameID query parameter is required", domain.ErrInvalidRequest)
	}
	opts := render.Options{Perspective: chess.White}
	if v := strings.TrimSpace(string(args.Peek("perspective"))); v != "" {
		c, err := chess.ParseColor(v)
		if err != nil || c == chess.NoColor {
			return fmt.Errorf("%w: perspective must be white or black", domain.ErrInvalidRequest)
		}
		opts.Perspective = c
	}
	if v := strings.TrimSpace(string(args.Peek("highlight"))); v != "" {
		m, err := chess.ParseMove(v)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
		}
		opts.Highlight = &m
	}

	rec, err := s.games.Game(ctx, authToken(rc), id)
	if err != nil {
		return err
	}
	opts.Title = rec.Name
	if rec.Game.Over() {
		opts.Turn = "Game over"
	} else {
		opts.Turn = rec.Game.Turn().String() + " to move"
	}
	png, err := s.renderer.RenderPNG(ctx, rec.Game.Board(), opts)
	if err != nil {
		return err
	}
	rc.SetStatusCode(fasthttp.StatusOK)
	rc.SetContentType("image/png")
	rc.SetBody(png)
	return nil
}

// clear wipes games first, then accounts.
func (s *Server) clear(ctx context.Context, rc *fasthttp.RequestCtx) error {
	if err := s.games.Clear(ctx); err != nil {
		return err
	}
	if err := s.accounts.Clear(ctx); err != nil {
		return err
	}
	s.logger.Warn("db_clear")
	return writeJSON(rc, fasthttp.StatusOK, struct{}{})
}

// authToken accepts a bare token or a "Bearer " prefixed one.
func authToken(rc *fasthttp.RequestCtx) string {
	v := strings.TrimSpace(string(rc.Request.Header.Peek(fasthttp.HeaderAuthorization)))
	if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		v = strings.TrimSpace(v[7:])
	}
	return v
}

func decodeBody(rc *fasthttp.RequestCtx, out any) error {
	body := rc.PostBody()
	if len(body) == 0 {
		return fmt.Errorf("%w: request body is required", domain.ErrInvalidRequest)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	return nil
}

func writeJSON(rc *fasthttp.RequestCtx, status int, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	rc.SetStatusCode(status)
	rc.SetContentType("application/json")
	rc.SetBody(payload)
	return nil
}

func writeError(rc *fasthttp.RequestCtx, status int, msg string) {
	rc.ResetBody()
	_ = writeJSON(rc, status, chessdto.ErrorResponse{Message: msg})
}
