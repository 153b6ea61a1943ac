// Package builder wires configuration into stores, services and transport handlers.
package builder

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/park285/cheese-chess/internal/auth"
	"github.com/park285/cheese-chess/internal/config"
	"github.com/park285/cheese-chess/internal/fanout"
	"github.com/park285/cheese-chess/internal/httpapi"
	"github.com/park285/cheese-chess/internal/msgcat"
	"github.com/park285/cheese-chess/internal/session"
	"github.com/park285/cheese-chess/internal/store"
	"github.com/park285/cheese-chess/internal/wsapi"
)

type Deps struct {
	Games    store.GameStore
	Accounts *auth.Service
	Hub      *fanout.Hub
	Sessions *session.Service
	HTTP     *httpapi.Server
	WS       *wsapi.Handler

	closers []io.Closer
}

// accountStore is what the auth service needs from one backend.
type accountStore interface {
	store.UserStore
	store.AuthStore
}

func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Deps{}
	opened := map[string]any{}
	open := func(backend string) (any, error) {
		if b, ok := opened[backend]; ok {
			return b, nil
		}
		var (
			b   any
			err error
		)
		switch backend {
		case config.BackendMemory:
			b = store.NewMemory()
		case config.BackendRedis:
			var r *store.Redis
			if r, err = store.NewRedis(ctx, cfg.RedisURL, cfg.AuthTokenTTL()); err == nil {
				d.closers = append(d.closers, r)
				b = r
			}
		case config.BackendPostgres:
			var p *store.Postgres
			if p, err = store.NewPostgres(ctx, cfg.DatabaseURL); err == nil {
				d.closers = append(d.closers, p)
				b = p
			}
		case config.BackendBadger:
			var bg *store.Badger
			if bg, err = store.OpenBadger(cfg.BadgerDir); err == nil {
				d.closers = append(d.closers, bg)
				b = bg
			}
		default:
			err = fmt.Errorf("unknown backend %q", backend)
		}
		if err != nil {
			return nil, fmt.Errorf("open %s backend: %w", backend, err)
		}
		opened[backend] = b
		logger.Info("store_open", zap.String("backend", backend))
		return b, nil
	}

	gb, err := open(cfg.StoreBackend)
	if err != nil {
		return nil, d.fail(err)
	}
	games, ok := gb.(store.GameStore)
	if !ok {
		return nil, d.fail(fmt.Errorf("%s backend cannot hold games", cfg.StoreBackend))
	}
	ab, err := open(cfg.AuthBackend)
	if err != nil {
		return nil, d.fail(err)
	}
	accounts, ok := ab.(accountStore)
	if !ok {
		return nil, d.fail(fmt.Errorf("%s backend cannot hold accounts", cfg.AuthBackend))
	}

	msgs := msgcat.Default()
	if cfg.MsgcatDir != "" {
		if msgs, err = msgcat.New(cfg.MsgcatDir); err != nil {
			return nil, d.fail(fmt.Errorf("load message catalog: %w", err))
		}
	}

	d.Games = games
	d.Accounts = auth.NewService(accounts, accounts,
		auth.WithBcryptCost(cfg.BcryptCost),
		auth.WithLogger(logger.Named("auth")),
	)
	d.Hub = fanout.NewHub(logger.Named("fanout"))
	d.Sessions = session.NewService(games, d.Accounts, d.Hub,
		session.WithLogger(logger.Named("session")),
		session.WithCatalog(msgs),
	)
	d.HTTP = httpapi.NewServer(d.Accounts, d.Sessions, httpapi.WithLogger(logger.Named("http")))
	d.WS = wsapi.NewHandler(d.Sessions, d.Hub,
		wsapi.WithSendBuffer(cfg.WSSendBuffer),
		wsapi.WithLogger(logger.Named("ws")),
	)
	return d, nil
}

func (d *Deps) fail(err error) error {
	if cerr := d.Close(); cerr != nil {
		return errors.Join(err, cerr)
	}
	return err
}

// Close releases every opened backend.
func (d *Deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
