package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"streetlab/internal/achievement"
	"streetlab/internal/catalog"
	"streetlab/internal/config"
	"streetlab/internal/media"
	"streetlab/internal/production"
	"streetlab/pkg/database"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ [CONFIG] %v", err)
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL, cfg.GinMode == gin.DebugMode)
	if err != nil {
		log.Fatalf("❌ [DATABASE] %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("❌ [DATABASE] %v", err)
	}

	redisClient := connectRedis(ctx, cfg.RedisURL)
	if redisClient != nil {
		defer redisClient.Close()
	}

	var images catalog.ImageStore
	var mediaService *media.Service
	if cfg.S3.Bucket != "" {
		store, err := media.New(ctx, media.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			PathStyle:       cfg.S3.PathStyle,
		})
		if err != nil {
			log.Fatalf("❌ [MEDIA] %v", err)
		}
		mediaService = media.NewService(store)
		images = mediaService
		go mediaService.RunCacheCleanup(ctx, 10*time.Minute)
		log.Printf("🖼️ [MEDIA] images stored in s3://%s", cfg.S3.Bucket)
	} else {
		log.Printf("⚠️ [MEDIA] S3_BUCKET not set, image uploads disabled")
	}

	var hook achievement.Hook = achievement.LogHook{}
	if redisClient != nil {
		hook = achievement.NewRedisHook(redisClient)
	}

	app := newApp(db, cfg, images, mediaService, hook, redisClient)

	if seeded, err := app.catalog.SeedDefaults(); err != nil {
		log.Fatalf("❌ [CATALOG] seed failed: %v", err)
	} else if seeded {
		log.Printf("🌱 [CATALOG] default catalog seeded")
	}

	sweeper := production.NewSweeper(db, app.production, cfg.SweepInterval, production.Task{
		Name: "revert_expired_effects",
		Run:  app.effects.RevertExpired,
	})
	app.sweeper = sweeper
	if cfg.SweepEnabled {
		sweeper.Start()
		defer sweeper.Stop()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("⚠️ [SERVER] shutdown: %v", err)
		}
	}()

	log.Printf("🚀 [SERVER] listening on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("❌ [SERVER] %v", err)
	}
	log.Printf("👋 [SERVER] stopped")
}

// connectRedis returns nil when no url is configured or redis is unreachable.
// Rate limiting and achievement counters degrade without it.
func connectRedis(ctx context.Context, url string) *redis.Client {
	if url == "" {
		log.Printf("⚠️ [REDIS] REDIS_URL not set, running without redis")
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("⚠️ [REDIS] invalid REDIS_URL: %v", err)
		return nil
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("⚠️ [REDIS] unreachable, running without redis: %v", err)
		_ = client.Close()
		return nil
	}
	log.Printf("✅ [REDIS] connected")
	return client
}
