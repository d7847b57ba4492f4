package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/talentpipe/inboxsync/internal/api"
	"github.com/talentpipe/inboxsync/internal/backend"
	"github.com/talentpipe/inboxsync/internal/bus"
	"github.com/talentpipe/inboxsync/internal/channel"
	"github.com/talentpipe/inboxsync/internal/config"
	"github.com/talentpipe/inboxsync/internal/lock"
	"github.com/talentpipe/inboxsync/internal/logging"
	"github.com/talentpipe/inboxsync/internal/pairing"
	"github.com/talentpipe/inboxsync/internal/profile"
	"github.com/talentpipe/inboxsync/internal/store"
	intsync "github.com/talentpipe/inboxsync/internal/sync"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile    string
	SocketPath string          // optional override for testing; empty = use default
	Settings   *config.Profile // optional; loaded from profile.toml and the environment when nil
	LogLevel   zapcore.Level
	Quiet      bool        // no console log copy; see logging.Options
	Logger     *zap.Logger // optional override for testing
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideSettings,
			provideBus,
			provideLock,
			provideJournal,
			provideBackend,
			provideChannel,
			provideEngine,
			provideService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	if p.Logger != nil {
		return p.Logger, nil
	}
	return logging.New(logging.Options{
		Path:    profile.LogPath(p.Profile),
		Profile: p.Profile,
		Level:   p.LogLevel,
		Quiet:   p.Quiet,
	})
}

func provideSettings(p Params, logger *zap.Logger) (*config.Profile, error) {
	s := p.Settings
	if s == nil {
		var err error
		if s, err = config.LoadProfile(profile.SettingsPath(p.Profile)); err != nil {
			return nil, err
		}
		s.ApplyEnv(os.Getenv)
		s.ApplyDefaults()
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("profile %s: %w", p.Profile, err)
	}
	logger.Info("settings loaded", zap.String("api_url", s.APIURL), zap.String("ws_url", s.WSURL))
	return s, nil
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(profile.Dir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

// provideJournal depends on the lock so a second daemon never touches the
// database.
func provideJournal(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	path := profile.JournalPath(p.Profile)
	db, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("journal initialized", zap.String("path", path))
	return db, nil
}

func provideBackend(s *config.Profile, logger *zap.Logger) *backend.Client {
	return backend.New(backend.Options{
		BaseURL: s.APIURL,
		Token:   s.Token,
		Timeout: s.RequestTimeout.Std(),
		Logger:  logger,
	})
}

func provideChannel(s *config.Profile, b *bus.Bus, logger *zap.Logger) *channel.Conn {
	header := http.Header{}
	if s.Token != "" {
		header.Set("Authorization", "Bearer "+s.Token)
	}
	return channel.New(channel.Options{
		URL:             s.WSURL,
		Header:          header,
		InitialInterval: s.Reconnect.InitialInterval.Std(),
		MaxInterval:     s.Reconnect.MaxInterval.Std(),
		Bus:             b,
		Logger:          logger,
	})
}

func provideEngine(s *config.Profile, api *backend.Client, ch *channel.Conn, db *store.DB, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.New(intsync.Deps{
		Backend: api,
		Channel: ch,
		Journal: db,
		Bus:     b,
		Logger:  logger,
		Pairing: pairing.Options{
			AccountID:               s.AccountID,
			UserID:                  s.UserID,
			Sessions:                s.Sessions,
			GraceDelay:              s.Pairing.GraceDelay.Std(),
			Interval:                s.Pairing.Interval.Std(),
			MaxElapsed:              s.Pairing.MaxElapsed.Std(),
			DisconnectConfirmations: s.Pairing.DisconnectConfirmations,
		},
		DirectoryDebounce: s.DirectoryDebounce.Std(),
	})
}

func provideService(p Params, engine *intsync.Engine, logger *zap.Logger) *api.Service {
	return api.NewService(p.Profile, engine, logger)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, db *store.DB, engine *intsync.Engine, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// Start the synchronizer (journal recovery, sessions, push channel).
			engine.Start(ctx)

			// Start gRPC server in background.
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			srv.Stop(ctx)
			engine.Close()
			if err := db.Close(); err != nil {
				logger.Warn("error closing journal", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
