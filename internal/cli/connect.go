package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/nodeshell/internal/config"
	"github.com/harun/nodeshell/internal/logger"
	"github.com/harun/nodeshell/internal/observability"
	"github.com/harun/nodeshell/internal/tracing"
	"github.com/harun/nodeshell/pkg/content"
	"github.com/harun/nodeshell/pkg/hooks"
	"github.com/harun/nodeshell/pkg/shell"
	"github.com/harun/nodeshell/pkg/store"
	"github.com/harun/nodeshell/pkg/transport"
)

// environment is everything one CLI invocation opens: logging, telemetry,
// the repository connection and the shell on top of it.
type environment struct {
	cfg     *config.Config
	profile *config.ProfileConfig
	log     *logger.Logger
	repo    *store.Repository
	shell   *shell.Shell
	history *shell.History
	metrics *http.Server
	tracing bool
}

// loadConfig loads the config file and applies command line overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	if errs := config.NewValidator(transport.Default().Names()...).ValidateConfig(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// connect opens the selected profile and builds a shell writing to out
func connect(ctx context.Context, out io.Writer) (env *environment, err error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	profile, err := cfg.Profile(profileName)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    true,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	env = &environment{cfg: cfg, profile: profile, log: log}
	defer func() {
		if err != nil {
			env.Close(context.Background())
			env = nil
		}
	}()

	zl := log.Component("cli").With().Str("profile", profile.Name).Logger()

	if cfg.AuditLog != "" {
		if err := observability.InitAuditLogger(cfg.AuditLog); err != nil {
			return env, fmt.Errorf("failed to open audit log: %w", err)
		}
	} else {
		observability.SetAuditLogger(observability.NewAuditLogger(zerolog.Nop()))
	}

	if cfg.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry(cfg.Tracing.ServiceName); err != nil {
			return env, fmt.Errorf("failed to initialize tracing: %w", err)
		}
		env.tracing = true
	}

	if cfg.MetricsAddr != "" {
		env.metrics = serveMetrics(cfg.MetricsAddr, zl)
	}

	env.repo, err = transport.Default().OpenRepository(ctx, profile.Transport, transport.Options{
		DSN:    profile.DSN,
		Logger: log.GetZerolog(),
	})
	if err != nil {
		return env, err
	}

	creds := content.Credentials{
		UserID:     profile.UserID,
		ReadOnly:   profile.ReadOnly,
		Attributes: profile.Attributes,
	}
	sess, err := env.repo.Login(ctx, creds, profile.Workspace)
	if err != nil {
		return env, err
	}

	if cfg.Shell.History {
		env.history, err = shell.NewHistory(filepath.Join(cfg.DataDir, "history"), cfg.Shell.HistorySize, log.GetZerolog())
		if err != nil {
			sess.Logout()
			return env, fmt.Errorf("failed to open history: %w", err)
		}
	}

	var hookManager *hooks.Manager
	if cfg.Shell.Hooks.Enabled {
		hookManager, err = hooks.NewManager(hooks.Config{
			Enabled: true,
			Hooks:   cfg.Shell.Hooks.Entries,
			Logger:  log.GetZerolog(),
		})
		if err != nil {
			sess.Logout()
			return env, fmt.Errorf("failed to load hooks: %w", err)
		}
	}

	env.shell, err = shell.New(shell.Config{
		Session:          sess,
		Credentials:      creds,
		Profile:          profile.Name,
		Out:              out,
		Logger:           log.GetZerolog(),
		Aliases:          cfg.Shell.Aliases,
		AutoSave:         cfg.Shell.AutoSave,
		PrefixCompletion: cfg.Shell.PrefixCompletion,
		Prompt:           cfg.Shell.Prompt,
		History:          env.history,
		Hooks:            hookManager,
	})
	if err != nil {
		sess.Logout()
		return env, err
	}

	zl.Info().
		Str("transport", profile.Transport).
		Str("workspace", sess.GetWorkspace().Name()).
		Str("user_id", sess.GetUserID()).
		Msg("Connected")

	return env, nil
}

// Close tears down everything connect opened, in reverse order
func (e *environment) Close(ctx context.Context) error {
	var errs []error

	if e.shell != nil {
		e.shell.Close()
	}
	if e.history != nil {
		if err := e.history.Compact(ctx, e.profile.Name); err != nil {
			errs = append(errs, err)
		}
	}
	if e.repo != nil {
		if err := e.repo.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.metrics != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := e.metrics.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		cancel()
	}
	if e.tracing {
		if err := tracing.ShutdownOpenTelemetry(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := observability.GetAuditLogger().Close(); err != nil {
		errs = append(errs, err)
	}
	if e.log != nil {
		if err := e.log.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func newMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func serveMetrics(addr string, logger zerolog.Logger) *http.Server {
	srv := newMetricsServer(addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("Metrics server failed")
		}
	}()
	logger.Info().Str("addr", addr).Msg("Serving metrics")
	return srv
}
