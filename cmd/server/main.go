// Command server runs the HTTP API and, when enabled, the background
// pipeline worker in the same process.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/jyouterean/kei-cargo-impression-agent/internal/api"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/bandit"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/classifier"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/config"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/domain"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/generator"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/guard"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/harvester"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/learning"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/miner"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/pkg/distlock"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/platform"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/policy"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/repository/postgres"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/snapshot"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/synth"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/worker"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("DATABASE_URL") != "" {
		log.Println("[config] DATABASE_URL env override active")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db := openDatabase(ctx, cfg.Database.URL)
	defer db.Close()

	if err := postgres.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	redisClient := connectRedis(ctx, cfg)
	defer redisClient.Close()

	platforms := cfg.EnabledPlatforms()
	if len(platforms) == 0 {
		log.Println("Warning: no platforms enabled — publishing is disabled until credentials are set")
	}
	clients := buildClients(ctx, cfg)

	if cfg.Bedrock.Region != "" && os.Getenv("AWS_REGION") == "" {
		os.Setenv("AWS_REGION", cfg.Bedrock.Region)
	}
	llm, err := classifier.NewClient(ctx, cfg.Bedrock.ModelID)
	if err != nil {
		log.Fatalf("Failed to initialize Bedrock client: %v", err)
	}

	// Repositories
	armRepo := postgres.NewArmRepo(db)
	postRepo := postgres.NewPostRepo(db)
	patternRepo := postgres.NewPatternRepo(db)
	weightRepo := postgres.NewWeightRepo(db)
	publishedRepo := postgres.NewPublishedRepo(db)
	metricsRepo := postgres.NewMetricsRepo(db)

	// Services
	mnr := miner.New(postRepo, patternRepo, llm, miner.Config{
		Language:        cfg.Harvest.Language,
		BuzzFloor:       cfg.Mining.MinBuzz,
		BatchSize:       cfg.Mining.BatchSize,
		ClassifyDelay:   cfg.Mining.Delay(),
		DistributionCap: cfg.Mining.MaxPerRun,
	})
	syn := synth.New(weightRepo, mnr, synth.Config{
		Platforms:    platforms,
		Formats:      cfg.Bandit.Formats,
		HookTypes:    cfg.Bandit.HookTypes,
		PayloadTypes: cfg.Bandit.PayloadTypes,
		WindowDays:   cfg.Mining.WindowDays,
		Location:     cfg.Location(),
	})
	bd := bandit.New(armRepo, syn, bandit.Config{
		Formats:       cfg.Bandit.Formats,
		HookTypes:     cfg.Bandit.HookTypes,
		Topics:        cfg.Bandit.Topics,
		RewardDivisor: cfg.Bandit.RewardDivisor,
	})
	learner := learning.New(publishedRepo, metricsRepo, bd, cfg.Learning.Lookback())
	g := guard.New(redisClient, cfg.HourlyLimits())
	gen := generator.New(llm, generator.NewTopicRadar(cfg.Radar.Feeds))
	pol := policy.New(g, publishedRepo, policy.Config{
		NGExpressions: cfg.Policy.NGExpressions,
		MaxPerDay:     cfg.Policy.MaxPerDay,
		MinRunes:      cfg.Policy.MinRunes,
	})

	var clientList []platform.Client
	for _, c := range clients {
		clientList = append(clientList, c)
	}
	harv := harvester.New(clientList, postRepo, harvester.Config{
		Queries:  cfg.Harvest.Queries,
		PerQuery: cfg.Harvest.PerQuery,
	})

	deps := worker.Deps{
		Harvester: harv,
		Miner:     mnr,
		Synth:     syn,
		Bandit:    bd,
		Generator: gen,
		Policy:    pol,
		Guard:     g,
		Learner:   learner,
		Published: publishedRepo,
		Metrics:   metricsRepo,
		Clients:   clients,
		Lock:      distlock.NewLock(redisClient, db, "pipeline:cycle", 30*time.Minute),
	}
	if cfg.Snapshot.Enabled && cfg.Snapshot.S3Bucket != "" {
		writer, err := snapshot.NewWriter(ctx, armRepo, syn, snapshot.Config{
			Bucket:    cfg.Snapshot.S3Bucket,
			Prefix:    cfg.Snapshot.Prefix,
			Region:    cfg.Snapshot.Region,
			Platforms: platforms,
		})
		if err != nil {
			log.Printf("Warning: snapshot writer init failed, snapshots disabled: %v", err)
		} else {
			deps.Snapshot = writer
			log.Printf("State snapshots enabled: s3://%s/%s", cfg.Snapshot.S3Bucket, cfg.Snapshot.Prefix)
		}
	}

	pipeline := worker.NewPipeline(deps, worker.Config{
		Interval:   cfg.Worker.Interval(),
		WindowDays: cfg.Mining.WindowDays,
		Platforms:  platforms,
	})
	if cfg.Worker.Enabled {
		pipeline.Start()
		defer pipeline.Stop()
	} else {
		log.Println("Background worker disabled — pipeline runs only via /api/jobs")
	}

	stages := map[string]api.Runner{
		"harvest":         func(ctx context.Context) error { _, err := harv.Harvest(ctx); return err },
		"mine":            func(ctx context.Context) error { _, err := mnr.Mine(ctx); return err },
		"synthesize":      func(ctx context.Context) error { _, err := syn.Synthesize(ctx); return err },
		"learn":           func(ctx context.Context) error { _, err := learner.RunLearningUpdate(ctx); return err },
		"collect_metrics": pipeline.RunCollectMetrics,
		"cycle":           pipeline.RunCycle,
	}
	handlers := api.NewHandlers(pipeline, armRepo, syn, mnr, g, stages, platforms)

	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.SetupRoutes(handlers),
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}

func openDatabase(ctx context.Context, url string) *sql.DB {
	if url == "" {
		log.Fatal("database.url (or DATABASE_URL) is required")
	}
	db, err := sql.Open("postgres", url)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(3)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("Database unreachable: %v", err)
	}
	return db
}

// connectRedis requires a live Redis: the guard's kill switch, rate
// limits, and duplicate fingerprints all live there.
func connectRedis(ctx context.Context, cfg *config.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Fatalf("Redis unreachable (%s): %v", cfg.Redis.Addr, err)
	}
	log.Printf("Redis connected: %s", cfg.Redis.Addr)
	return client
}

func buildClients(ctx context.Context, cfg *config.Config) map[domain.Platform]platform.Client {
	clients := make(map[domain.Platform]platform.Client)
	if cfg.Platforms.X.Enabled && cfg.Platforms.X.BearerToken != "" {
		clients[domain.PlatformX] = platform.NewXClient(ctx, cfg.Platforms.X.BearerToken)
		log.Println("X client configured")
	}
	if cfg.Platforms.Threads.Enabled && cfg.Platforms.Threads.AccessToken != "" {
		clients[domain.PlatformThreads] = platform.NewThreadsClient(ctx, cfg.Platforms.Threads.AccessToken, cfg.Platforms.Threads.UserID)
		log.Println("Threads client configured")
	}
	return clients
}
