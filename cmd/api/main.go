package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wisebox-backend/internal/auth"
	"wisebox-backend/internal/cache"
	"wisebox-backend/internal/catalog"
	"wisebox-backend/internal/config"
	"wisebox-backend/internal/consultations"
	"wisebox-backend/internal/db"
	"wisebox-backend/internal/drafts"
	"wisebox-backend/internal/geocode"
	"wisebox-backend/internal/middleware"
	"wisebox-backend/internal/models"
	"wisebox-backend/internal/notifications"
	"wisebox-backend/internal/properties"
	"wisebox-backend/internal/propertyintake"
	"wisebox-backend/internal/storage"
	"wisebox-backend/internal/users"
	"wisebox-backend/internal/validation"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	rootCtx, stopRoot := context.WithCancel(context.Background())
	defer stopRoot()

	ctx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Error("mongo connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("mongo connected")
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, cols); err != nil {
		logger.Error("index creation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Redis backs both the response cache and the drafts. Without it both
	// fall back to process memory.
	var cacheStore cache.Cache = cache.NewMemory()
	draftRepo := drafts.NewInMemory(cfg.DraftTTL)
	if cfg.RedisURL != "" || cfg.RedisAddr != "" {
		var redisCache *cache.RedisCache
		var err error
		if cfg.RedisURL != "" {
			redisCache, err = cache.NewRedisFromURL(cfg.RedisURL)
		} else {
			redisCache = cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		}
		if err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := redisCache.Ping(ctx); err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer redisCache.Close()
		if cfg.RedisURL != "" {
			logger.Info("redis connected (url)")
		} else {
			logger.Info("redis connected", slog.String("addr", cfg.RedisAddr))
		}
		cacheStore = redisCache
		draftRepo = drafts.NewRedis(redisCache.Client(), cfg.DraftTTL)
	} else {
		logger.Warn("redis disabled: cache and drafts kept in memory")
	}

	var blobs storage.BlobStore
	if cfg.MinioEnabled() {
		minioStore, err := storage.NewMinioStore(storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			logger.Error("minio setup failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := minioStore.EnsureBucket(ctx); err != nil {
			logger.Error("minio bucket check failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("minio connected", slog.String("endpoint", cfg.MinioEndpoint), slog.String("bucket", cfg.MinioBucket))
		blobs = minioStore
	} else {
		logger.Warn("minio disabled: uploads kept in memory")
		blobs = storage.NewMemoryStore()
	}

	secret := cfg.JWTSecret
	if secret == "" {
		logger.Warn("jwt secret not set: using an ephemeral secret, sessions end on restart")
		secret = uuid.NewString()
	}
	jwtManager := &auth.Manager{
		Secret:     []byte(secret),
		AccessTTL:  time.Duration(cfg.AccessTTLMinutes) * time.Minute,
		RefreshTTL: time.Duration(cfg.RefreshTTLMinutes) * time.Minute,
		Issuer:     "wisebox-backend",
	}

	var geocoder geocode.Geocoder
	if mapbox := geocode.NewMapboxClient(cfg.MapboxToken, cfg.GeocodeCountry); mapbox != nil {
		geocoder = geocode.NewCached(mapbox, cacheStore, cfg.GeocodeCacheTTL)
		logger.Info("mapbox geocoding enabled", slog.String("country", cfg.GeocodeCountry))
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	var propertyNotifier properties.Notifier
	var consultationNotifier consultations.Notifier
	var accountMailer users.Mailer
	if mailer := notifications.NewBrevoClient(cfg.BrevoAPIKey, cfg.BrevoSenderEmail, cfg.BrevoSenderName, cfg.BrevoSandbox); mailer != nil {
		logger.Info("brevo mailer enabled", slog.String("sender", cfg.BrevoSenderEmail), slog.Bool("sandbox", cfg.BrevoSandbox))
		propertyNotifier = mailer
		consultationNotifier = mailer
		accountMailer = mailer
	} else {
		logger.Info("brevo mailer disabled")
	}

	cat, err := catalog.Load()
	if err != nil {
		logger.Error("catalog load failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	val := validation.New()

	usersService := users.NewService(users.NewRepository(cols.Users), jwtManager, cfg.Timezone).
		WithAccountFlows(users.AccountFlows{
			Store:    cacheStore,
			Mailer:   accountMailer,
			CodeTTL:  cfg.VerifyCodeTTL,
			ResetTTL: cfg.ResetTokenTTL,
			ResetURL: cfg.PasswordResetURL,
		})
	usersHandler := users.NewHandler(usersService, val, logger,
		jwtManager.AccessTTL, jwtManager.RefreshTTL, cfg.CookieSecure)

	propertiesService := properties.NewService(
		properties.NewRepository(cols.Properties),
		blobs,
		time.Duration(cfg.PresignExpiryHours)*time.Hour,
		cfg.Timezone,
		usersService,
		propertyNotifier,
	)
	propertiesHandler := properties.NewHandler(propertiesService, val, logger)

	sessions := propertyintake.NewSessionStore(cfg.SessionIdleTTL, cfg.MaxLiveSessions, logger)
	uploader := storage.NewUploader(blobs, storage.Policy{MaxBytes: cfg.UploadMaxBytes, Extensions: cfg.UploadExtensions})
	intakeService := propertyintake.NewService(sessions, uploader, geocoder, draftRepo, propertiesService, logger)
	intakeHandler := propertyintake.NewHandler(intakeService, val, logger, cfg.UploadMaxBytes).WithReceipts(propertiesService)
	go sessions.Run(rootCtx, time.Minute)
	go intakeService.RunOrphanSweep(rootCtx, cfg.BlobSweepEvery, cfg.SessionIdleTTL)

	consultationsService := consultations.NewService(consultations.NewRepository(cols.Consultations), cat, consultations.Options{
		Cache:    cacheStore,
		CacheTTL: cfg.CacheTTL(),
		Location: cfg.Timezone,
		FreeURL:  cfg.FreeConsultURL,
		Users:    usersService,
		Notifier: consultationNotifier,
	})
	consultationsHandler := consultations.NewHandler(consultationsService, val, logger)

	catalogHandler := catalog.NewHandler(cat, cacheStore, cfg.CacheTTL(), logger)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.FrontendOrigins, logger))
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	loginLimiter := middleware.NewRateLimiter(cfg.RateLimitLogin, cfg.RateWindow())
	bookingLimiter := middleware.NewRateLimiter(cfg.RateLimitBooking, cfg.RateWindow())
	uploadLimiter := middleware.NewRateLimiter(cfg.RateLimitUpload, cfg.RateWindow())
	requireAuth := middleware.RequireAuth(jwtManager)

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/catalog", catalogHandler.Get)
		api.Get("/consultations/services", consultationsHandler.Services)
		api.Get("/consultations/availability", consultationsHandler.Availability)

		api.Route("/auth", func(a chi.Router) {
			a.With(loginLimiter.Middleware).Post("/login", usersHandler.Login)
			a.With(loginLimiter.Middleware).Post("/signup", usersHandler.Signup)
			a.With(loginLimiter.Middleware).Post("/verify", usersHandler.Verify)
			a.With(loginLimiter.Middleware).Post("/verify/resend", usersHandler.ResendCode)
			a.With(loginLimiter.Middleware).Post("/password-reset", usersHandler.RequestPasswordReset)
			a.With(loginLimiter.Middleware).Post("/password-reset/confirm", usersHandler.ConfirmPasswordReset)
			a.Post("/refresh", usersHandler.Refresh)
			a.Post("/logout", usersHandler.Logout)
			a.With(requireAuth).Get("/me", usersHandler.Me)
		})

		// Important (chi): middlewares must be attached before defining routes.
		api.Group(func(protected chi.Router) {
			protected.Use(requireAuth)

			protected.Mount("/wizard", intakeHandler.Routes(uploadLimiter.Middleware))

			protected.Get("/properties", propertiesHandler.List)
			protected.Get("/properties/dashboard", propertiesHandler.Dashboard)
			protected.Get("/properties/{id}", propertiesHandler.Get)

			protected.With(bookingLimiter.Middleware).Post("/consultations", consultationsHandler.Book)
			protected.Get("/consultations", consultationsHandler.List)
			protected.Post("/consultations/{id}/cancel", consultationsHandler.Cancel)

			protected.Route("/admin", func(admin chi.Router) {
				admin.Use(middleware.RequireRole(models.UserRoleAdmin))
				admin.Use(middleware.RequireActiveRole(usersService.AccountState, models.UserRoleAdmin))
				admin.Get("/users", usersHandler.AdminList)
				admin.Post("/users", usersHandler.AdminCreate)
				admin.Patch("/users/{id}/role", usersHandler.AdminUpdateRole)
				admin.Patch("/users/{id}/status", usersHandler.AdminUpdateStatus)
				admin.Delete("/users/{id}", usersHandler.AdminDelete)

				admin.Get("/properties", propertiesHandler.AdminList)
				admin.Get("/properties/{id}", propertiesHandler.Get)
				admin.Patch("/properties/{id}/status", propertiesHandler.AdminUpdateStatus)

				admin.Get("/consultations", consultationsHandler.AdminList)
				admin.Patch("/consultations/{id}/status", consultationsHandler.AdminUpdateStatus)
			})
		})
	})

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: r,
	}

	go func() {
		logger.Info("server started", slog.String("addr", cfg.ServerAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	stopRoot()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
}
