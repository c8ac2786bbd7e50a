package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/linkinbio/internal/auth"
	"github.com/MarcoPoloResearchLab/linkinbio/internal/config"
	"github.com/MarcoPoloResearchLab/linkinbio/internal/database"
	"github.com/MarcoPoloResearchLab/linkinbio/internal/logging"
	"github.com/MarcoPoloResearchLab/linkinbio/internal/metrics"
	"github.com/MarcoPoloResearchLab/linkinbio/internal/pagecache"
	"github.com/MarcoPoloResearchLab/linkinbio/internal/profile"
	"github.com/MarcoPoloResearchLab/linkinbio/internal/render"
	"github.com/MarcoPoloResearchLab/linkinbio/internal/server"
	"github.com/MarcoPoloResearchLab/linkinbio/internal/settings"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "linkinbio",
		Short: "Link-in-bio page server",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
		SilenceUsage: true,
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newHashPasswordCommand(), newRenderCommand(), newPreviewCommand())
	return rootCmd
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", defaults.GetString("log.format"), "Log format (json, console)")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")
	cmd.PersistentFlags().String("page-slug", defaults.GetString("page.slug"), "Path of the public page")
	cmd.PersistentFlags().Bool("secure-cookies", defaults.GetBool("auth.secure_cookies"), "Mark session cookies Secure")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.format", "log-format")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "page.slug", "page-slug")
	bindFlag(cmd, "auth.secure_cookies", "secure-cookies")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

// application holds the collaborators shared by the server and the CLI tools.
type application struct {
	config   config.AppConfig
	logger   *zap.Logger
	db       *gorm.DB
	renderer *render.Renderer
	metrics  *metrics.Registry
	settings *settings.Service
}

func newApplication(appConfig config.AppConfig, logger *zap.Logger) (*application, error) {
	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return nil, err
	}

	store, err := settings.NewGormStore(settings.GormStoreConfig{
		Database:   db,
		OptionName: profile.OptionName,
		Clock:      time.Now,
	})
	if err != nil {
		return nil, err
	}

	renderer := render.NewRenderer(render.Config{Language: appConfig.PageLanguage})
	registry := metrics.NewRegistry()

	settingsService, err := settings.NewService(settings.ServiceConfig{
		Store:    store,
		Renderer: renderer,
		Cache:    pagecache.New(pagecache.Config{MaxBytes: appConfig.CacheMaxBytes}),
		Metrics:  registry,
		Page: settings.PageConfig{
			Title:   appConfig.PageTitle,
			Content: appConfig.PageContent,
		},
		Clock:  time.Now,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	return &application{
		config:   appConfig,
		logger:   logger,
		db:       db,
		renderer: renderer,
		metrics:  registry,
		settings: settingsService,
	}, nil
}

func (a *application) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func loadApplication() (*application, error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return nil, err
	}

	app, err := newApplication(appConfig, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return app, nil
}

func runServer(ctx context.Context) error {
	app, err := loadApplication()
	if err != nil {
		return err
	}
	defer app.logger.Sync() //nolint:errcheck
	defer app.Close()       //nolint:errcheck

	credentials, err := auth.NewCredentials(auth.CredentialsConfig{
		Username:     app.config.AdminUsername,
		PasswordHash: app.config.AdminPasswordHash,
	})
	if err != nil {
		return err
	}
	app.logger.Info("admin account configured", zap.String("username", credentials.Username()))

	tokenIssuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(app.config.SigningSecret),
		SessionTTL:    app.config.SessionTTL,
		NonceTTL:      app.config.NonceTTL,
	})
	if err != nil {
		return err
	}

	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(app.config.SigningSecret),
		CookieName:    app.config.CookieName,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Options:        app.settings,
		Credentials:    credentials,
		Tokens:         tokenIssuer,
		Sessions:       sessionValidator,
		Realtime:       server.NewRealtimeDispatcher(),
		Metrics:        app.metrics.Handler(),
		PageSlug:       app.config.PageSlug,
		AllowedOrigins: app.config.AllowedOrigins,
		LoginRateLimit: app.config.LoginRatePerMinute,
		SecureCookies:  app.config.SecureCookies,
		Logger:         app.logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              app.config.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("server starting",
			zap.String("address", app.config.HTTPAddress),
			zap.String("page_slug", app.config.PageSlug))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
