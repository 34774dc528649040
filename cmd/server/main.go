package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/neighborhood-lottery/internal/config"
	"github.com/iliyamo/neighborhood-lottery/internal/database"
	"github.com/iliyamo/neighborhood-lottery/internal/handler"
	"github.com/iliyamo/neighborhood-lottery/internal/middleware"
	"github.com/iliyamo/neighborhood-lottery/internal/queue"
	"github.com/iliyamo/neighborhood-lottery/internal/repository"
	"github.com/iliyamo/neighborhood-lottery/internal/router"
	"github.com/iliyamo/neighborhood-lottery/internal/service"
	"github.com/iliyamo/neighborhood-lottery/internal/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded (%v); using process environment", err)
	}
	cfg := config.Load()
	rules := config.LoadLotteryConfig()
	integ := config.LoadIntegrationsConfig()
	cacheCfg := config.LoadCacheConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	if cfg.MigrateOnStart {
		mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if err := database.InitTables(mctx, db); err != nil {
			cancel()
			log.Fatalf("database: init tables: %v", err)
		}
		cancel()
	}

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}

	// repositories
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	selections := repository.NewSelectionRepo(db)
	winning := repository.NewWinningRepo(db)
	settings := repository.NewSettingsRepo(db)
	payments := repository.NewPaymentRepo(db)
	activityRepo := repository.NewActivityRepo(db)

	if n, err := tokens.PurgeExpired(ctx, time.Now().UTC().Add(-24*time.Hour)); err != nil {
		log.Printf("tokens: purge expired: %v", err)
	} else if n > 0 {
		log.Printf("tokens: purged %d expired refresh tokens", n)
	}

	// services
	hub := ws.NewHub()
	jobs := service.NewJobs(rules.BulkDelay, hub)
	activity := service.NewActivity(activityRepo)
	gates := service.NewGates(settings, activity)
	throttle := service.NewThrottle(rdb, "lottery:lock")

	var events service.EventPublisher
	if integ.RabbitMQEnabled {
		events = queue.NewPublisher(integ.RabbitMQURL, integ.EventsQueue)
		go func() {
			if err := queue.StartSelectionConsumer(ctx, integ.RabbitMQURL, integ.EventsQueue, integ.EventsLogDir); err != nil && ctx.Err() == nil {
				log.Printf("selection-consumer: stopped: %v", err)
			}
		}()
	}

	sel := service.NewSelections(selections, gates, throttle, activity, events, rules)
	pub := service.NewPublication(selections, winning, gates, jobs, activity, rules)
	mod := service.NewModeration(selections, users, jobs, activity, rules)
	ledger := service.NewLedger(payments, users, selections)
	draws := service.NewDraws(winning, activity, rules)
	accounts := service.NewAccounts(users, tokens, selections, activity, cfg.BcryptCost)

	purge := func(ctx context.Context) {
		if _, err := middleware.PurgeCache(ctx, cacheCfg, rdb); err != nil {
			log.Printf("cache: purge: %v", err)
		}
	}
	pub.OnChange = purge
	mod.OnChange = purge
	sel.OnChange = purge

	if integ.TelegramToken != "" && integ.TelegramChatID != 0 {
		sender, err := service.NewTelegramSender(integ.TelegramToken, integ.TelegramChatID)
		if err != nil {
			log.Printf("notifier: telegram disabled: %v", err)
		} else {
			go service.NewNotifier(gates, selections, sender, rules).Run(ctx, integ.NotifierInterval)
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	if len(cfg.CORSOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins: cfg.CORSOrigins,
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "Idempotency-Key"},
		}))
	}

	router.RegisterRoutes(e, router.Handlers{
		Health:     &handler.HealthHandler{DB: db, Redis: rdb},
		Auth:       handler.NewAuthHandler(cfg, users, tokens, activity),
		Profile:    handler.NewProfileHandler(accounts, ledger),
		Selections: handler.NewSelectionHandler(sel, gates),
		Results:    handler.NewResultsHandler(pub, draws),
		Admin: &handler.AdminHandler{
			Moderation:     mod,
			Publication:    pub,
			Gates:          gates,
			Draws:          draws,
			Ledger:         ledger,
			Accounts:       accounts,
			Activity:       activity,
			ResultsChanged: purge,
		},
		Jobs: handler.NewJobHandler(jobs, hub),
	}, router.Middlewares{
		RateLimit: middleware.NewWriteQuota(config.LoadRateLimitConfig(), rdb),
		Cache:     middleware.NewRedisCache(cacheCfg, rdb),
	}, cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if j := jobs.Running(); j != nil {
		log.Printf("waiting for bulk job %s", j.ID())
		select {
		case <-j.Done():
		case <-sctx.Done():
		}
	}
}
