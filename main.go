package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"civicwatch-be/config"
	"civicwatch-be/controllers"
	"civicwatch-be/dashboard"
	"civicwatch-be/engagement"
	"civicwatch-be/events"
	"civicwatch-be/geocode"
	"civicwatch-be/lifecycle"
	"civicwatch-be/middlewares"
	"civicwatch-be/models"
	"civicwatch-be/notify"
	"civicwatch-be/routes"
	"civicwatch-be/store"
	"civicwatch-be/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreDriver, err)
	}
	log.Printf("Using %s store", cfg.StoreDriver)

	rdb, err := config.ConnectRedis(ctx, cfg.RedisAddress, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	if cfg.BootstrapModeratorEmail != "" {
		if err := bootstrapModerator(ctx, st, cfg); err != nil {
			log.Printf("Bootstrap moderator failed: %v", err)
		}
	}

	bus := events.NewBus(cfg.HandlerTimeout)
	notifier := notify.NewNotifier(newDispatcher(cfg), st, cfg.SiteURL)
	resolver := geocode.NewNominatimResolver(cfg.GeocodeURL, cfg.GeocodeUserAgent, cfg.GeocodeTimeout)
	enricher := geocode.NewEnricher(resolver, st, cfg.GeocodeTimeout)
	redisEvents := events.NewRedisPublisher(rdb, cfg.EventsChannel)

	kinds := []lifecycle.EventKind{lifecycle.KindIssueReported, lifecycle.KindIssueTransitioned, lifecycle.KindCommentAdded}
	for _, kind := range kinds {
		mustSubscribe(bus, kind, "notifier", notifier.HandleEvent)
		mustSubscribe(bus, kind, "redis", redisEvents.HandleEvent)
	}
	mustSubscribe(bus, lifecycle.KindIssueReported, "geocoder", enricher.HandleEvent)

	engine := lifecycle.NewEngine(st)
	ctrl := routes.Controllers{
		Issues:     controllers.NewIssueController(engine, st, engagement.NewTracker(st), enricher, bus),
		Dashboard:  controllers.NewDashboardController(dashboard.NewAggregator(st), redisEvents),
		Categories: controllers.NewCategoryController(st),
		Users:      controllers.NewUserController(st),
	}
	mw := routes.Middleware{
		Auth:        []gin.HandlerFunc{middlewares.AuthMiddleware(cfg.JWTSecret), middlewares.LoadActor(st)},
		Optional:    []gin.HandlerFunc{middlewares.OptionalAuth(cfg.JWTSecret), middlewares.LoadActor(st)},
		ReportLimit: middlewares.IssueRateLimiter(rdb, cfg.IssueLimitPrefix, cfg.IssueDailyLimit),
	}

	r := gin.Default()
	r.Use(cors.New(corsConfig(cfg.CORSOrigin)))
	routes.Register(r, mw, ctrl)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("Listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	bus.Wait()
	if err := st.Close(shutdownCtx); err != nil {
		log.Printf("Closing store: %v", err)
	}
	if err := rdb.Close(); err != nil {
		log.Printf("Closing Redis: %v", err)
	}
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, err := config.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		ms := store.NewMongoStore(client, cfg.MongoDatabase)
		if err := ms.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
		return ms, nil
	case config.DriverPostgres:
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := store.ApplyMigrations(ctx, db); err != nil {
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		return store.NewPostgresStore(db), nil
	case config.DriverMemory:
		log.Println("Warning: memory store keeps data only for the life of the process")
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

func newDispatcher(cfg config.Config) notify.Dispatcher {
	if cfg.SendGridAPIKey != "" {
		sg := notify.NewSendGridDispatcher(cfg.SendGridAPIKey, cfg.SMTPFrom, cfg.SMTPFromName)
		if sg.IsConfigured() {
			log.Println("Email via SendGrid")
			return sg
		}
	}
	smtp := notify.NewSMTPDispatcher(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if smtp.IsConfigured() {
		log.Printf("Email via SMTP %s:%s", cfg.SMTPHost, cfg.SMTPPort)
		return smtp
	}
	log.Println("Warning: no email transport configured, notifications are only logged")
	return notify.LogDispatcher{}
}

func mustSubscribe(bus *events.Bus, kind lifecycle.EventKind, name string, h events.Handler) {
	if err := bus.Subscribe(kind, name, h); err != nil {
		log.Fatalf("Subscribe %s to %s: %v", name, kind, err)
	}
}

func corsConfig(origin string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if origin == "" || origin == "*" {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = strings.Split(origin, ",")
		c.AllowCredentials = true
	}
	return c
}

// bootstrapModerator makes sure the configured moderator exists and logs a
// token for it, so a fresh deployment can be administered.
func bootstrapModerator(ctx context.Context, st store.Store, cfg config.Config) error {
	email := strings.ToLower(cfg.BootstrapModeratorEmail)
	moderators, err := st.ListUsers(ctx, store.UserFilter{Role: models.RoleModerator})
	if err != nil {
		return err
	}

	var user *models.User
	for i := range moderators {
		if strings.EqualFold(moderators[i].Email, email) {
			user = &moderators[i]
			break
		}
	}
	if user == nil {
		now := time.Now().UTC()
		user = &models.User{
			Name:      "Moderator",
			Email:     email,
			Role:      models.RoleModerator,
			IsStaff:   true,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := st.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("create moderator: %w", err)
		}
		log.Printf("Created moderator %s", email)
	}

	token, err := utils.GenerateToken(cfg.JWTSecret, user.ID.Hex())
	if err != nil {
		return err
	}
	log.Printf("Moderator %s token: %s", email, token)
	return nil
}
