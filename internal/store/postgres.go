package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/park285/cheese-chess/internal/chess"
	"github.com/park285/cheese-chess/internal/domain"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS chess_games (
    id             BIGSERIAL PRIMARY KEY,
    name           TEXT NOT NULL,
    white_username TEXT NOT NULL DEFAULT '',
    black_username TEXT NOT NULL DEFAULT '',
    game           JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS chess_users (
    username      TEXT PRIMARY KEY,
    password_hash TEXT NOT NULL,
    email         TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS chess_auth (
    token      TEXT PRIMARY KEY,
    username   TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// uniqueViolation is the SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

// Postgres backs games, users and auth tickets. Game ids come from the
// BIGSERIAL sequence; Clear truncates without restarting it.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	p := &Postgres{db: db}
	if err := p.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (p *Postgres) Create(ctx context.Context, name string) (*domain.GameRecord, error) {
	game := chess.NewGame()
	raw, err := json.Marshal(game)
	if err != nil {
		return nil, fmt.Errorf("encode game: %w", err)
	}
	var id int
	err = p.db.QueryRowContext(ctx,
		`INSERT INTO chess_games (name, game) VALUES ($1, $2) RETURNING id`,
		name, string(raw),
	).Scan(&id)
	if err != nil {
		return nil, dataAccess("insert chess game", err)
	}
	return &domain.GameRecord{ID: id, Name: name, Game: game}, nil
}

func (p *Postgres) Load(ctx context.Context, id int) (*domain.GameRecord, error) {
	return p.load(ctx, p.db, id, false)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (p *Postgres) load(ctx context.Context, q queryer, id int, forUpdate bool) (*domain.GameRecord, error) {
	query := `SELECT id, name, white_username, black_username, game FROM chess_games WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var (
		rec domain.GameRecord
		raw []byte
	)
	err := q.QueryRowContext(ctx, query, id).Scan(&rec.ID, &rec.Name, &rec.WhiteUser, &rec.BlackUser, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, gameNotFound(id)
	}
	if err != nil {
		return nil, dataAccess("select chess game", err)
	}
	rec.Game = &chess.Game{}
	if err := json.Unmarshal(raw, rec.Game); err != nil {
		return nil, fmt.Errorf("decode game %d: %w", id, err)
	}
	return &rec, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (p *Postgres) Save(ctx context.Context, rec *domain.GameRecord) error {
	return p.save(ctx, p.db, rec)
}

func (p *Postgres) save(ctx context.Context, e execer, rec *domain.GameRecord) error {
	if rec == nil {
		return nilRecord()
	}
	raw, err := json.Marshal(rec.Game)
	if err != nil {
		return fmt.Errorf("encode game %d: %w", rec.ID, err)
	}
	q := `INSERT INTO chess_games (id, name, white_username, black_username, game)
      VALUES ($1, $2, $3, $4, $5)
      ON CONFLICT (id) DO UPDATE SET
        name=EXCLUDED.name,
        white_username=EXCLUDED.white_username,
        black_username=EXCLUDED.black_username,
        game=EXCLUDED.game`
	if _, err := e.ExecContext(ctx, q, rec.ID, rec.Name, rec.WhiteUser, rec.BlackUser, string(raw)); err != nil {
		return dataAccess("upsert chess game", err)
	}
	return nil
}

// Update locks the row with SELECT ... FOR UPDATE for the duration of fn.
func (p *Postgres) Update(ctx context.Context, id int, fn func(*domain.GameRecord) error) (*domain.GameRecord, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, dataAccess("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := p.load(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	if err := fn(rec); err != nil {
		return nil, err
	}
	if err := p.save(ctx, tx, rec); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, dataAccess("commit", err)
	}
	return rec, nil
}

func (p *Postgres) List(ctx context.Context) ([]*domain.GameRecord, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, name, white_username, black_username, game FROM chess_games ORDER BY id`)
	if err != nil {
		return nil, dataAccess("list chess games", err)
	}
	defer rows.Close()

	out := make([]*domain.GameRecord, 0)
	for rows.Next() {
		var (
			rec domain.GameRecord
			raw []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.WhiteUser, &rec.BlackUser, &raw); err != nil {
			return nil, dataAccess("scan chess game", err)
		}
		rec.Game = &chess.Game{}
		if err := json.Unmarshal(raw, rec.Game); err != nil {
			return nil, fmt.Errorf("decode game %d: %w", rec.ID, err)
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, dataAccess("list chess games", err)
	}
	return out, nil
}

// Clear empties the games table. The id sequence is left alone.
func (p *Postgres) Clear(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, `TRUNCATE chess_games`); err != nil {
		return dataAccess("truncate chess games", err)
	}
	return nil
}

func (p *Postgres) CreateUser(ctx context.Context, u domain.User) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO chess_users (username, password_hash, email) VALUES ($1, $2, $3)`,
		u.Username, u.PasswordHash, u.Email)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return fmt.Errorf("%w: username %q", domain.ErrAlreadyTaken, u.Username)
	}
	if err != nil {
		return dataAccess("insert chess user", err)
	}
	return nil
}

func (p *Postgres) GetUser(ctx context.Context, username string) (*domain.User, error) {
	var u domain.User
	err := p.db.QueryRowContext(ctx,
		`SELECT username, password_hash, email FROM chess_users WHERE username = $1`, username,
	).Scan(&u.Username, &u.PasswordHash, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %q", domain.ErrNotFound, username)
	}
	if err != nil {
		return nil, dataAccess("select chess user", err)
	}
	return &u, nil
}

func (p *Postgres) ClearUsers(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, `TRUNCATE chess_users`); err != nil {
		return dataAccess("truncate chess users", err)
	}
	return nil
}

func (p *Postgres) PutAuth(ctx context.Context, t domain.AuthTicket) error {
	q := `INSERT INTO chess_auth (token, username) VALUES ($1, $2)
      ON CONFLICT (token) DO UPDATE SET username=EXCLUDED.username`
	if _, err := p.db.ExecContext(ctx, q, t.Token, t.Username); err != nil {
		return dataAccess("insert chess auth", err)
	}
	return nil
}

func (p *Postgres) GetAuth(ctx context.Context, token string) (*domain.AuthTicket, error) {
	t := domain.AuthTicket{Token: token}
	err := p.db.QueryRowContext(ctx,
		`SELECT username FROM chess_auth WHERE token = $1`, token,
	).Scan(&t.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: auth token", domain.ErrNotFound)
	}
	if err != nil {
		return nil, dataAccess("select chess auth", err)
	}
	return &t, nil
}

func (p *Postgres) DeleteAuth(ctx context.Context, token string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM chess_auth WHERE token = $1`, token)
	if err != nil {
		return dataAccess("delete chess auth", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: auth token", domain.ErrNotFound)
	}
	return nil
}

func (p *Postgres) ClearAuth(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, `TRUNCATE chess_auth`); err != nil {
		return dataAccess("truncate chess auth", err)
	}
	return nil
}
