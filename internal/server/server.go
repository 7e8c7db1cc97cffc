package server

import (
	"context"
	"log"

	"backend-eventhub/internal/auth"
	"backend-eventhub/internal/backend"
	"backend-eventhub/internal/config"
	"backend-eventhub/internal/feed"
	"backend-eventhub/internal/friends"
	"backend-eventhub/internal/models"
	"backend-eventhub/internal/session"
	"backend-eventhub/internal/storage"
	"backend-eventhub/internal/stream"
	"backend-eventhub/internal/tracking"
	"backend-eventhub/internal/visibility"
	"backend-eventhub/internal/widget"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App      *fiber.App
	Cfg      config.Config
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Stream   *stream.Hub
	Auth     *auth.Service
	Sessions *session.Manager
	Feeds    *feed.Registry
	Filter   *visibility.Filter

	port       backend.Port
	moderation visibility.Moderator
	friends    *friends.Service
	widgets    *widget.Store
	images     *storage.Service
	tracking   *tracking.Service
}

// NewServer wires the feed stack. Without Postgres it runs on the
// in-memory backend and stores.
func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     db,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient),
	}

	recoveryHash := ""
	if cfg.RecoveryEnabled {
		recoveryHash = cfg.RecoveryPasswordHash
	}
	s.Auth = auth.NewService(cfg.JWTSecret, recoveryHash)

	var (
		store     visibility.Store
		profiles  session.ProfileStore
		locations tracking.LocationStore
	)
	if db != nil {
		s.friends = friends.NewService(db)
		s.images = storage.NewService(db, "/storage/images")
		locations = tracking.NewPostgresStore(db)
		s.port = backend.NewPostgres(db, s.friends, cfg.FetchRadiusKm)
		pgStore := visibility.NewPostgresStore(db)
		store, s.moderation = pgStore, pgStore
		profiles = session.NewPostgresProfiles(db)
	} else {
		log.Printf("postgres unavailable, serving feeds from memory")
		s.port = backend.NewMemory()
		memStore := visibility.NewMemoryStore()
		store, s.moderation = memStore, memStore
		profiles = session.NewMemoryProfiles()
	}
	s.Filter = visibility.NewFilter(store, cfg.HiddenEventTTL, nil)
	s.Sessions = session.NewManager(s.Auth, profiles)

	deps := feed.Deps{Port: s.port, Filter: s.Filter, Notifier: s.Stream}
	if redisClient != nil {
		s.widgets = widget.NewStore(redisClient, cfg.WidgetKeyPrefix)
		deps.Widget = s.widgets
	}

	rcfg := feed.RegistryConfig{
		Deps: deps,
		Options: feed.Options{
			EnableCategories:     cfg.EnableCategories,
			EnablePastPagination: cfg.EnablePastPagination,
			PastPageSize:         cfg.PastPageSize,
		},
		Listen:   s.Stream.Listen,
		Schedule: cfg.RefreshSchedule,
	}
	if s.Auth.RecoveryEnabled() {
		rcfg.Reauth = s.Sessions.Reauthenticate
	}
	s.Feeds = feed.NewRegistry(rcfg)
	s.Sessions.OnChange(s.Feeds.HandleSessionChange)
	s.tracking = tracking.NewService(locations, s.Sessions, cfg.LocationReloadKm, s.reloadFeed)

	registerRoutes(s)
	return s
}

func (s *Server) reloadFeed(uid string) {
	svc, ok := s.Feeds.Get(uid)
	if !ok {
		return
	}
	go func() {
		if err := svc.LoadFeed(context.Background()); err != nil {
			log.Printf("feed reload after move failed for %s: %v", uid, err)
		}
	}()
}

func (s *Server) Start() error {
	return s.Feeds.Start()
}

func (s *Server) Close() {
	s.Feeds.Stop()
	s.Stream.Close()
	s.Filter.Wait()
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)
	viewer := session.Require(s.Sessions)

	var widgets feed.WidgetReader
	if s.widgets != nil {
		widgets = s.widgets
	}
	moderationChanged := func(sess models.UserSession) {
		s.Stream.Broadcast(stream.ModerationTopic(sess.ExternalUID), []byte("changed"))
	}

	auth.RegisterRoutes(s.App.Group("/auth"), s.Auth)
	session.RegisterRoutes(s.App.Group("/session"), s.Sessions, jwtMiddleware)
	feed.RegisterRoutes(s.App.Group("/feed"), s.Feeds, widgets, jwtMiddleware, viewer)
	visibility.RegisterRoutes(s.App.Group("/moderation"), s.moderation, moderationChanged, jwtMiddleware, viewer)
	if s.friends != nil {
		friends.RegisterRoutes(s.App.Group("/friends"), s.friends, jwtMiddleware, viewer)
	}
	if s.images != nil {
		storage.RegisterRoutes(s.App.Group("/storage"), s.images, jwtMiddleware, viewer)
	}
	tracking.RegisterRoutes(s.App.Group("/tracking"), s.tracking, jwtMiddleware, viewer)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream, auth.UserID, jwtMiddleware)
}
