package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/secureboat/recipe-api/handlers"
	"github.com/secureboat/recipe-api/internal/config"
	"github.com/secureboat/recipe-api/internal/database"
	"github.com/secureboat/recipe-api/internal/datastore"
	"github.com/secureboat/recipe-api/internal/ingredients"
	"github.com/secureboat/recipe-api/internal/oidc"
	"github.com/secureboat/recipe-api/internal/recipes"
	"github.com/secureboat/recipe-api/internal/relations"
	"github.com/secureboat/recipe-api/internal/sessions"
	"github.com/secureboat/recipe-api/internal/storage"
	"github.com/secureboat/recipe-api/internal/tokens"
	"github.com/secureboat/recipe-api/internal/users"
	"github.com/secureboat/recipe-api/pkg/logger"
	"github.com/secureboat/recipe-api/pkg/metrics"
	"github.com/secureboat/recipe-api/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// initialize logging (can be controlled with LOG_LEVEL env: debug|info|warn|error|fatal)
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: mongo=%v redis=%v google=%v", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.Google.ClientID != "")

	r := gin.New()

	// Lightweight CORS middleware for dev/test: set common headers and respond to OPTIONS.
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	})
	r.Use(gin.Logger(), gin.Recovery())

	ctx := context.Background()

	// Connect to Redis early so the blacklist and rate limiter can use it
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Host + ":" + cfg.Redis.Port, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			redisClient = nil
		} else {
			sessions.SetBlacklistClient(redisClient)
			logger.Infof("Connected to Redis: %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}

	// Access tokens are first-party HS256 JWTs; the insecure verifier is an
	// explicit opt-in for integration tests only.
	var accessVerifier middleware.Verifier = tokens.NewVerifier(cfg.JWT.Secret)
	if strings.ToLower(strings.TrimSpace(os.Getenv("ALLOW_INSECURE_TOKEN"))) == "true" {
		logger.Warn("enabling insecure token verifier (integration mode)")
		accessVerifier = oidc.NewInsecureVerifier()
	}

	// Identity extraction never aborts: handlers decide what anonymous or
	// rejected callers may do. Runs before the rate limiter so limits key on
	// the subject when one is present.
	r.Use(middleware.IdentityMiddleware(accessVerifier, sessions.IsTokenBlacklisted))

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	// Document store: MongoDB when configured and reachable, in-memory
	// otherwise (dev/test).
	var store datastore.Store
	var sessionsSvc *sessions.Service
	var mongoOK bool
	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5)
		if err != nil {
			logger.Warnf("could not connect to MongoDB: %v", err)
		} else {
			defer func() { _ = client.Disconnect(ctx) }()
			store = datastore.NewMongoStore(client.Database(cfg.MongoDB.Database))
			mongoOK = true
			logger.Infof("Using MongoDB document store: %s", cfg.MongoDB.Database)

			// Mongo-backed sessions only when Redis did not claim them
			if redisClient == nil {
				srepo := sessions.NewMongoRepository(client.Database(cfg.MongoDB.Database).Collection("sessions"))
				sessionsSvc = sessions.NewService(srepo)
			}
		}
	}
	if store == nil {
		store = datastore.NewMemoryStore()
		logger.Warn("using in-memory document store, data will not survive restarts")
	}
	if redisClient != nil {
		sessionsSvc = sessions.NewService(sessions.NewRedisRepository(redisClient, "session:"))
		logger.Infof("Using Redis for session storage")
	}

	rel := relations.NewSynchronizer(store)
	recipesSvc := recipes.NewService(store, rel, cfg.PageSize)
	ingredientsSvc := ingredients.NewService(store, rel, cfg.PageSize)
	usersSvc := users.NewService(store)

	// Optional MinIO-backed recipe photos
	var photos *storage.PhotoStore
	if mcfg := storage.LoadMinIOConfig(); mcfg.Endpoint != "" {
		ps, err := storage.NewPhotoStore(mcfg)
		if err != nil {
			logger.Warnf("photo storage disabled: %v", err)
		} else {
			photos = ps
			logger.Infof("Photo storage enabled: %s/%s", mcfg.Endpoint, mcfg.Bucket)
		}
	}

	// OIDC verifier for Google id tokens in the login callback
	var idTokenVerifier middleware.Verifier
	if cfg.Google.ClientID != "" {
		ver, err := oidc.NewVerifier(ctx, cfg.Google.Issuer, cfg.Google.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			idTokenVerifier = ver
		}
	}
	if idTokenVerifier == nil && strings.ToLower(strings.TrimSpace(os.Getenv("ALLOW_INSECURE_TOKEN"))) == "true" {
		idTokenVerifier = oidc.NewInsecureVerifier()
	}

	api := r.Group("/", middleware.RequireJSONAccept())
	handlers.NewRecipeHandler(recipesSvc, photos, cfg.Server.RootURL).Register(api)
	handlers.NewIngredientHandler(ingredientsSvc, cfg.Server.RootURL).Register(api)
	handlers.NewUserHandler(usersSvc).Register(api)
	if sessionsSvc != nil {
		handlers.NewAuthHandler(cfg, usersSvc, sessionsSvc, idTokenVerifier).Register(api)
	} else {
		logger.Warnf("auth handlers not registered because no session store is available")
	}
	handlers.RegisterSwagger(r)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness: 200 only when critical dependencies are available
	r.GET("/ready", func(c *gin.Context) {
		ready := true
		deps := map[string]bool{}
		deps["store"] = store != nil
		deps["mongo"] = mongoOK
		deps["sessions"] = sessionsSvc != nil
		if cfg.Redis.Host != "" && cfg.RateLimit.UseRedis {
			deps["redis"] = redisClient != nil
			if !deps["redis"] {
				ready = false
			}
		} else {
			deps["redis"] = true
		}
		if !ready {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "deps": deps, "uptime": time.Since(startTime).String()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "deps": deps, "uptime": time.Since(startTime).String()})
	})

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("Starting recipe API on %s", addr)
	if err := r.Run(addr); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}
