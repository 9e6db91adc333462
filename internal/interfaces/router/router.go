package router

import (
	"net/http"

	"broker-backend/internal/application/catalog"
	"broker-backend/internal/application/embedding"
	"broker-backend/internal/application/ledger"
	"broker-backend/internal/application/lifecycle"
	"broker-backend/internal/application/matching"
	"broker-backend/internal/application/notifier"
	"broker-backend/internal/config"
	"broker-backend/internal/infrastructure/database"
	adminhandler "broker-backend/internal/interfaces/handlers/admin"
	healthhandler "broker-backend/internal/interfaces/handlers/health"
	listhandler "broker-backend/internal/interfaces/handlers/listings"
	matchhandler "broker-backend/internal/interfaces/handlers/matches"
	"broker-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type gormDBPinger struct {
	db *gorm.DB
}

func (g *gormDBPinger) Ping() error {
	if g == nil || g.db == nil {
		return nil
	}
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// App bundles everything CreateApp wires up so main can manage lifetimes.
type App struct {
	Fiber     *fiber.App
	DB        *gorm.DB
	Rdb       *redis.Client
	Lifecycle *lifecycle.Manager
}

func CreateApp(cfg *config.Config) (*App, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
	}))

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		rdb = redis.NewClient(opts)
		app.Use(middleware.HealthMarker(rdb))
	}
	app.Use(middleware.ResponseFormatter())
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	hh := &healthhandler.Handlers{
		Rdb:            rdb,
		HealthAdminKey: cfg.HealthAdminKey,
	}
	app.Get("/", hh.JSON)
	app.Get("/reset", hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := database.AutoMigrate(db); err != nil {
			return nil, err
		}
		hh.DB = &gormDBPinger{db: db}
		hh.Gorm = db
	}

	bundle := &App{Fiber: app, DB: db, Rdb: rdb}
	if db == nil {
		return bundle, nil
	}

	var embedder embedding.Provider
	if cfg.Embedding.APIKey != "" {
		embedder = embedding.NewOpenAIClient(cfg.Embedding)
		if rdb != nil {
			embedder = embedding.NewCachedProvider(embedder, rdb, cfg.Embedding.CacheTTL)
		}
	} else {
		log.Warn().Msg("No embedding API key set, listings are created without vectors")
	}

	var retriever matching.Retriever
	if db.Dialector.Name() == "postgres" {
		retriever = &matching.PgVectorRetriever{DB: db}
	} else {
		retriever = &matching.ScanRetriever{DB: db}
	}

	var notify notifier.Notifier
	if cfg.NotifyWebhookURL != "" {
		notify = notifier.NewWebhookNotifier(cfg.NotifyWebhookURL)
	} else {
		notify = notifier.LogNotifier{}
	}

	cat := &catalog.Service{DB: db}
	led := &ledger.Service{DB: db}
	match := &matching.Service{
		Catalog:   cat,
		Ledger:    led,
		Retriever: retriever,
		Notifier:  notify,
		Cfg:       cfg.Matching,
	}
	manager := lifecycle.NewManager(cat, match, cfg)
	bundle.Lifecycle = manager

	lh := &listhandler.Handlers{
		Service:    cat,
		Embedder:   embedder,
		Lifecycle:  manager,
		Notifier:   notify,
		ExpireDays: cfg.ExpireDays,
	}
	lg := app.Group("/api/v1/listings")
	lg.Post("/create-listing", lh.CreateListing)
	lg.Get("/get-listing/:listing_id", lh.GetListing)
	lg.Get("/get-user-listings", lh.GetUserListings)
	lg.Patch("/update-status", lh.UpdateStatus)

	mh := &matchhandler.Handlers{Ledger: led, Catalog: cat, Notifier: notify}
	mg := app.Group("/api/v1/matches")
	mg.Get("/get-listing-matches/:listing_id", mh.GetListingMatches)
	mg.Patch("/update-status", mh.UpdateStatus)

	adh := &adminhandler.Handlers{Manager: manager, AdminKey: cfg.HealthAdminKey}
	ag := app.Group("/api/v1/admin")
	ag.Post("/run-rescan", adh.RunRescan)
	ag.Post("/run-expiry-sweep", adh.RunExpirySweep)

	return bundle, nil
}

func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}
