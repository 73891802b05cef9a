// Package daemon composes the glotpad daemon: session lock, durable store,
// realtime channel, chat sync engine, document collaborator, presence
// tracker and the translation pipeline, wired through fx.
package daemon

import (
	"context"
	"errors"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/glotpad/glotpad/internal/bus"
	"github.com/glotpad/glotpad/internal/config"
	"github.com/glotpad/glotpad/internal/doc"
	"github.com/glotpad/glotpad/internal/identity"
	"github.com/glotpad/glotpad/internal/lock"
	"github.com/glotpad/glotpad/internal/logging"
	"github.com/glotpad/glotpad/internal/presence"
	"github.com/glotpad/glotpad/internal/realtime"
	"github.com/glotpad/glotpad/internal/session"
	"github.com/glotpad/glotpad/internal/status"
	"github.com/glotpad/glotpad/internal/store"
	intsync "github.com/glotpad/glotpad/internal/sync"
	"github.com/glotpad/glotpad/internal/translate"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	RelayURL    string // optional override; empty = value from config
}

// Module returns the fx module for the daemon, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideConfig,
			provideStateMachine,
			provideLock,
			provideStore,
			provideProfile,
			provideChannel,
			provideTranslator,
			provideSyncEngine,
			provideCollab,
			provideTracker,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideConfig(p Params, logger *zap.Logger) *config.Config {
	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("config unreadable, using defaults", zap.Error(err))
		}
		cfg = config.Default()
	}
	if p.RelayURL != "" {
		cfg.RelayURL = p.RelayURL
	}
	return cfg
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.DBPath(p.SessionName)
	db, err := store.Open(dbPath)
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
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideProfile(p Params, logger *zap.Logger) identity.Profile {
	prof, err := identity.Load(session.ProfilePath(p.SessionName))
	if err != nil {
		if errors.Is(err, identity.ErrNoProfile) {
			logger.Info("no profile yet, sends disabled until one is saved")
		} else {
			logger.Warn("profile unreadable", zap.Error(err))
		}
		return identity.Profile{}
	}
	logger.Info("profile loaded", zap.String("user", prof.Name))
	return prof
}

// provideChannel joins the room over the websocket relay when one is
// configured, or over an in-process hub for single-host demo mode.
func provideChannel(cfg *config.Config, prof identity.Profile, b *bus.Bus, logger *zap.Logger) (realtime.Channel, error) {
	key := prof.Key()
	if key == "" {
		key = "anonymous"
	}
	if cfg.RelayURL == "" {
		logger.Info("no relay configured, using in-process channel",
			zap.String("room", cfg.Room))
		return realtime.NewHub().Join(cfg.Room, key), nil
	}
	return realtime.Dial(context.Background(), cfg.RelayURL, cfg.Room, key, b, logger)
}

func provideTranslator(cfg *config.Config, logger *zap.Logger) *translate.Translator {
	backend := translate.NewEngineClient(translate.EngineConfig{
		Endpoint: cfg.Translator.Endpoint,
		APIKey:   cfg.Translator.APIKey,
		Timeout:  cfg.TranslatorTimeout(),
	})
	cache := translate.NewCache(cfg.Translator.CacheSize, cfg.CacheTTL())
	return translate.New(translate.NewGlossary(), cache, backend, logger)
}

func provideSyncEngine(cfg *config.Config, db *store.DB, ch realtime.Channel, tr *translate.Translator, prof identity.Profile, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(intsync.Options{
		DB:           db,
		Channel:      ch,
		Translator:   tr,
		Bus:          b,
		Logger:       logger,
		Profile:      prof,
		SourceLocale: cfg.SourceLocale,
		Targets:      cfg.TargetLocales,
		PollInterval: cfg.PollInterval(),
	})
}

func provideCollab(cfg *config.Config, db *store.DB, ch realtime.Channel, b *bus.Bus, logger *zap.Logger) *doc.Collab {
	return doc.NewCollab(db, ch, b, logger, cfg.SnapshotDebounce())
}

func provideTracker(ch realtime.Channel, prof identity.Profile, b *bus.Bus, logger *zap.Logger) *presence.Tracker {
	key := prof.Key()
	if key == "" {
		key = "anonymous"
	}
	return presence.NewTracker(ch, key, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, cfg *config.Config, lk *lock.Lock, db *store.DB, ch realtime.Channel, engine *intsync.Engine, collab *doc.Collab, tracker *presence.Tracker, machine *status.Machine, b *bus.Bus, logger *zap.Logger) {
	degradeCtx, stopDegrade := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			_ = machine.Transition(status.Connecting)

			if err := engine.Start(context.Background()); err != nil {
				return err
			}
			if err := collab.Start(context.Background()); err != nil {
				return err
			}
			if err := tracker.Start(context.Background()); err != nil {
				logger.Warn("presence tracking unavailable", zap.Error(err))
			}

			if cfg.RelayURL == "" {
				// Relay-less mode never gets push deliveries from other
				// hosts; the store poll is the only remote path.
				_ = machine.Transition(status.PollOnly)
			} else {
				_ = machine.Transition(status.Live)
			}
			// Track relay connectivity: a dropped push channel degrades to
			// the poll path, a redial restores live delivery.
			go func() {
				events, unsub := b.Subscribe("channel.", 16)
				defer unsub()
				for {
					select {
					case evt := <-events:
						switch evt.Kind {
						case bus.KindChannelDisconnected:
							_ = machine.Transition(status.PollOnly)
						case bus.KindChannelConnected:
							_ = machine.Transition(status.Live)
						}
					case <-degradeCtx.Done():
						return
					}
				}
			}()

			logger.Info("daemon started",
				zap.String("room", cfg.Room),
				zap.String("state", string(machine.Current())))
			return nil
		},
		OnStop: func(_ context.Context) error {
			stopDegrade()
			tracker.Stop()
			collab.Stop()
			engine.Stop()
			if err := ch.Close(); err != nil {
				logger.Warn("channel close failed", zap.Error(err))
			}
			if err := db.Close(); err != nil {
				logger.Warn("store close failed", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
