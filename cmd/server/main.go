package main // Entry point package

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/aquafloor/projectguard/internal/approval"
	"github.com/aquafloor/projectguard/internal/catalog"
	"github.com/aquafloor/projectguard/internal/config"
	"github.com/aquafloor/projectguard/internal/database"
	"github.com/aquafloor/projectguard/internal/engine"
	"github.com/aquafloor/projectguard/internal/handler"
	"github.com/aquafloor/projectguard/internal/middleware"
	"github.com/aquafloor/projectguard/internal/model"
	"github.com/aquafloor/projectguard/internal/notify"
	"github.com/aquafloor/projectguard/internal/queue"
	"github.com/aquafloor/projectguard/internal/repository"
	"github.com/aquafloor/projectguard/internal/router"
	queue_publisher "github.com/aquafloor/projectguard/internal/service"
	"github.com/aquafloor/projectguard/internal/sweeper"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	protections := repository.NewProtectionRepo(db)
	history := repository.NewHistoryRepo(db)
	fanouts := repository.NewFanoutRepo(db)
	users := repository.NewUserRepo(db)
	managers := repository.NewManagerRepo(db)

	gateway := notify.NewTelegram(cfg.BotToken)
	eng := engine.New(protections)

	workflow := approval.New(eng, users, fanouts, gateway)
	workflow.OnDecision(func(ctx context.Context, p *model.Protection, approved bool) {
		ev := queue.ProtectionDecidedEvent{
			ProtectionID: p.ID,
			Manager:      p.Manager,
			Partner:      p.Partner,
			SKU:          p.SKU,
			AreaM2:       p.Area(),
			Approved:     approved,
			ExpiresAt:    p.ExpiresAt.Format("2006-01-02"),
		}
		if p.UpdatedAt != nil {
			ev.DecidedAt = p.UpdatedAt.Format("2006-01-02 15:04:05")
		}
		// Best effort: a broker outage must not block the decision.
		_ = queue_publisher.PublishProtectionDecided(ctx, ev)
	})

	var cat *catalog.Catalog
	if cfg.CatalogPath != "" {
		cat, err = catalog.Load(cfg.CatalogPath)
		if err != nil {
			log.Fatalf("catalog: %v", err)
		}
		log.Printf("catalog: loaded %d skus from %s", cat.Len(), cfg.CatalogPath)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sweeper.New(eng, workflow, cfg.SweepInterval, cfg.ReminderWindow).Run(ctx)
	go func() {
		if err := queue.StartDecisionConsumer(); err != nil {
			log.Printf("decision-consumer: %v", err)
		}
	}()

	e := echo.New()
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting disabled")
	}
	mutating := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	router.Register(e, router.Handlers{
		Auth:       handler.NewAuthHandler(users, cfg.BotToken, cfg.JWTSecret, cfg.AccessTTLMin),
		Protection: handler.NewProtectionHandler(eng, workflow, protections, history),
		Admin:      handler.NewAdminHandler(eng, workflow, protections, history, managers),
		User:       handler.NewUserHandler(users, cfg.BcryptCost),
		Catalog:    handler.NewCatalogHandler(cat),
		Telegram:   handler.NewTelegramHandler(workflow, users),
	}, cfg.JWTSecret, mutating)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
