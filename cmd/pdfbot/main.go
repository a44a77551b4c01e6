// Command pdfbot runs the Telegram PDF library bot: a webhook (or long
// polling) front end over the search, quota, cooldown and result cache
// services.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-pdf-library-bot/internal/bot"
	"github.com/tbourn/go-pdf-library-bot/internal/config"
	httpapi "github.com/tbourn/go-pdf-library-bot/internal/http"
	"github.com/tbourn/go-pdf-library-bot/internal/http/handlers"
	"github.com/tbourn/go-pdf-library-bot/internal/memstore"
	"github.com/tbourn/go-pdf-library-bot/internal/observability"
	"github.com/tbourn/go-pdf-library-bot/internal/redisstore"
	"github.com/tbourn/go-pdf-library-bot/internal/repo"
	"github.com/tbourn/go-pdf-library-bot/internal/search"
	"github.com/tbourn/go-pdf-library-bot/internal/services"
	"github.com/tbourn/go-pdf-library-bot/internal/sysutil"
	"github.com/tbourn/go-pdf-library-bot/internal/telegram"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// store is everything the bot persists.
type store interface {
	services.UserStore
	services.StatsStore
	services.ResultStore
	services.UpdateLog
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	sysutil.SetupLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("pdfbot stopped")
	}
	log.Info().Msg("pdfbot stopped")
}

func run(ctx context.Context, cfg config.Config) error {
	ver := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTEL, ver)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var (
		results services.ResultStore = st
		offsets telegram.OffsetStore
	)
	if cfg.CacheDriver == "redis" {
		rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		client, err := redisstore.Connect(rctx, cfg.RedisURL)
		cancel()
		if err != nil {
			return err
		}
		defer client.Close()
		results = redisstore.New(client, cfg.Limits.ResultTTL)
		offsets = redisstore.NewOffsetStore(client)
		log.Info().Msg("result cache and polling offset on redis")
	}

	if err := services.SeedSuperUsers(ctx, st, cfg.Bot.SuperUsers); err != nil {
		return fmt.Errorf("seed super users: %w", err)
	}

	tg := telegram.NewClient(cfg.Bot.APIBaseURL, cfg.Bot.Token, 30*time.Second)
	b := newBot(cfg, st, results, tg)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		services.RunSweeper(gctx, cfg.Limits.ResultSweepInterval,
			b.Cache.Sweep,
			func(ctx context.Context) (int64, error) {
				return st.PurgeUpdatesBefore(ctx, time.Now().UTC().Add(-cfg.UpdateLogTTL))
			},
		)
		return nil
	})

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, handlers.New(b, st), cfg)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("mode", cfg.Bot.Mode).Str("version", ver).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	switch cfg.Bot.Mode {
	case "polling":
		p := telegram.NewPoller(tg, b, offsets)
		p.Timeout = cfg.Bot.PollTimeout
		p.Workers = cfg.Bot.PollWorkers
		g.Go(func() error { return p.Run(gctx) })
	default:
		if cfg.Bot.WebhookURL != "" {
			wctx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := tg.SetWebhook(wctx, cfg.Bot.WebhookURL, cfg.Bot.WebhookSecret)
			cancel()
			if err != nil {
				log.Error().Err(err).Msg("setWebhook failed; expecting an externally registered webhook")
			} else {
				log.Info().Msg("webhook registered")
			}
		}
	}

	return g.Wait()
}

func openStore(cfg config.Config) (store, func(), error) {
	if cfg.StoreDriver == "memory" {
		log.Warn().Msg("memory store: users and quotas are lost on restart")
		return memstore.New(), func() {}, nil
	}
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	closer := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return repo.NewStore(db), closer, nil
}

func newBot(cfg config.Config, st store, results services.ResultStore, tg *telegram.Client) *bot.Bot {
	priv := services.NewPrivilegeResolver(st, cfg.Bot.AdminIDs)
	cache := services.NewResultCache(results, cfg.Limits.ResultTTL)

	var client search.Client
	switch cfg.Search.Backend {
	case "scrape":
		client = search.NewScrapeClient(cfg.Search.ScrapeURL, cfg.Search.Timeout, cfg.Search.Retries, cfg.Search.RetryBackoff)
	default:
		client = search.NewAPIClient(cfg.Search.APIURL, cfg.Search.Timeout, cfg.Search.Retries, cfg.Search.RetryBackoff)
	}

	return &bot.Bot{
		Messenger:  tg,
		Search:     client,
		Users:      st,
		Stats:      st,
		Privileges: priv,
		Quota:      services.NewQuotaTracker(st, cfg.Limits.SearchLimit, cfg.Limits.SearchResetWindow),
		Cooldown:   services.NewCooldownGate(st, cfg.Limits.PDFCooldown),
		Cache:      cache,
		Pages:      &services.Paginator{Cache: cache},
		Admin: &services.AdminService{
			Users:      st,
			Results:    results,
			Usage:      st,
			Privileges: priv,
			Limit:      cfg.Limits.SearchLimit,
			Window:     cfg.Limits.SearchResetWindow,
			Now:        time.Now,
		},
		Settings: bot.Settings{
			NumResults:    cfg.Search.NumResults,
			StorageChatID: cfg.Bot.StorageChatID,
			LogChatID:     cfg.Bot.LogChatID,
			DeveloperURL:  cfg.Bot.DeveloperURL,
			DonateText:    cfg.Bot.DonateText,

			DonatePhotoURL: cfg.Bot.DonatePhotoURL,
		},
		Now: time.Now,
	}
}
