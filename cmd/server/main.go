package main // Entry point package

import (
	"log" // Logging library

	"github.com/labstack/echo/v4"                   // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware" // Echo built-in middleware

	"github.com/iliyamo/event-registration/internal/config"     // environment config
	"github.com/iliyamo/event-registration/internal/database"   // MySQL connector
	"github.com/iliyamo/event-registration/internal/handler"    // HTTP handlers
	"github.com/iliyamo/event-registration/internal/middleware" // auth + rate limiting
	"github.com/iliyamo/event-registration/internal/queue"      // broker consumer
	"github.com/iliyamo/event-registration/internal/repository" // DB repositories
	"github.com/iliyamo/event-registration/internal/router"     // route table
)

func main() {
	cfg := config.Load() // Load environment config

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	// Redis backs the token revocation list; without it logout cannot work.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Fatal("redis connection failed; revocation list requires redis")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	events := repository.NewEventRepo(db)
	blacklist := repository.NewBlacklistRepo(rdb)

	// Background consumer; logs confirmed registrations to logs/registration.log.
	go func() {
		if err := queue.StartRegistrationConsumer(); err != nil {
			log.Printf("registration consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Logger())  // request logging
	e.Use(echomw.Recover()) // panic recovery
	e.Use(echomw.CORS())    // browser clients call from other origins

	router.RegisterRoutes(e, router.Deps{
		Auth:      handler.NewAuthHandler(cfg, users, tokens, blacklist),
		Events:    handler.NewEventHandler(events, users),
		Reports:   handler.NewReportHandler(events, users),
		Users:     users,
		Blacklist: blacklist,
		JWTSecret: cfg.JWTSecret,
		RateLimit: middleware.NewRateLimiter(config.LoadRateLimitConfig(), rdb),
	})

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err) // Log and exit if server fails
	}
}
