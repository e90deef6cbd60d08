package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"

	"traktical/api"
	"traktical/config"
	"traktical/handlers"
	"traktical/internal/database"
	"traktical/internal/encryption"
	"traktical/internal/logging"
	"traktical/services/accounts"
	"traktical/services/calendar"
	"traktical/services/metadata"
	"traktical/services/tokens"
	"traktical/services/trakt"
	"traktical/utils"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	host := flag.String("host", "", "address to listen on (overrides LISTEN_ADDR)")
	port := flag.Int("port", 0, "port to listen on (overrides LISTEN_ADDR)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *debug {
		cfg.Debug = true
	}
	cfg.ListenAddr = listenAddr(cfg.ListenAddr, *host, *port)

	logger, logCloser := logging.Setup(logging.Options{Level: cfg.Logging.Level, File: cfg.Logging.File, Debug: cfg.Debug})
	defer logCloser.Close()

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	secret, err := encryption.EnsureSecretKey(cfg.SecretKey, ".env")
	if err != nil {
		return err
	}
	if cfg.SecretKey == "" {
		logger.Warn("SECRET_KEY was not set; generated one and appended it to .env")
	}
	sealer, err := encryption.NewSealer(secret)
	if err != nil {
		return err
	}
	stateKey, err := encryption.StateKey(secret)
	if err != nil {
		return err
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN, Debug: cfg.Debug, AttachStacktrace: true}); err != nil {
			logger.Warn("sentry disabled", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	db, err := database.NewDB(database.Config{DatabasePath: cfg.Storage.DatabasePath})
	if err != nil {
		return err
	}
	defer db.Close()
	users := database.NewUserRepository(db.Connection())

	traktClient := trakt.NewClient(cfg.Trakt.ClientID, cfg.Trakt.ClientSecret)
	traktClient.SetBaseURL(cfg.Trakt.APIBaseURL)
	traktClient.SetRedirectURI(cfg.RedirectURL())
	traktClient.SetWindowTimeout(cfg.Trakt.WindowTimeout)

	oauth := trakt.NewOAuth(trakt.OAuthConfig{
		ClientID:     cfg.Trakt.ClientID,
		ClientSecret: cfg.Trakt.ClientSecret,
		RedirectURL:  cfg.RedirectURL(),
		AuthURL:      cfg.Trakt.AuthURL,
		TokenURL:     cfg.Trakt.TokenURL,
		StateKey:     stateKey,
	})

	meta := metadata.NewService(cfg.TMDB.AccessToken)
	if !meta.Enabled() {
		logger.Info("TMDB_ACCESS_TOKEN not set; previews will have no artwork")
	}

	tokensSvc := tokens.NewService(users, traktClient, sealer)
	accountsSvc := accounts.NewService(users, oauth, traktClient, sealer)
	feedCache := calendar.NewFeedCache(afero.NewOsFs(), cfg.Cache.Dir, cfg.Cache.TTL)
	calendarSvc := calendar.NewService(traktClient, tokensSvc, meta, feedCache)

	limiter := api.NewIPRateLimiter(ctx, rate.Every(12*time.Second), 5)
	limiter.SetTrustProxy(cfg.TrustProxy)
	authHandler := handlers.NewAuthHandler(oauth, accountsSvc)
	calendarHandler := handlers.NewCalendarHandler(calendarSvc)
	accountsHandler := handlers.NewAccountsHandler(users, tokensSvc, accountsSvc)
	staticHandler := handlers.NewStaticHandler(afero.NewBasePathFs(afero.NewOsFs(), cfg.StaticDir))

	r := utils.NewRouter()
	r.Use(api.RequestLogger)

	login := r.NewRoute().Subrouter()
	login.Use(limiter.Middleware())
	login.HandleFunc("/auth", authHandler.Authorize).Methods(http.MethodGet)
	login.HandleFunc("/trakt/callback", authHandler.Callback).Methods(http.MethodGet)
	login.HandleFunc("/callback", authHandler.Callback).Methods(http.MethodGet)

	r.HandleFunc("/api/user/{id}", accountsHandler.GetUser).Methods(http.MethodGet)
	r.HandleFunc("/assets/{path:.*}", staticHandler.Asset).Methods(http.MethodGet)
	r.HandleFunc("/", staticHandler.Index).Methods(http.MethodGet)

	preview := r.NewRoute().Subrouter()
	preview.Use(api.UserKeyMiddleware(users, api.JSONKeyErrors))
	preview.HandleFunc("/{kind:shows|movies}/json", calendarHandler.Preview).Methods(http.MethodGet, http.MethodOptions)

	feeds := r.NewRoute().Subrouter()
	feeds.Use(api.UserKeyMiddleware(users, api.RedirectToAuth))
	feeds.HandleFunc("/{kind:shows|movies}", calendarHandler.Feed).Methods(http.MethodGet)

	var handler http.Handler = utils.Compress(r)
	if cfg.SentryDSN != "" {
		handler = sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle(handler)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * time.Minute,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.ListenAddr, "redirect_uri", cfg.RedirectURL())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// listenAddr applies --host and --port on top of the configured address.
func listenAddr(addr, host string, port int) string {
	h, p, err := net.SplitHostPort(addr)
	if err != nil {
		h, p = addr, "8000"
	}
	if host != "" {
		h = host
	}
	if port > 0 {
		p = strconv.Itoa(port)
	}
	return net.JoinHostPort(h, p)
}
