// Command worker runs the pipeline headless, without the HTTP API.
// Multiple instances coordinate through the distributed cycle lock.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Database.URL == "" {
		log.Fatal("database.url (or DATABASE_URL) is required")
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		pingCancel()
		log.Fatalf("Database unreachable: %v", err)
	}
	pingCancel()

	if err := postgres.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Redis unreachable (%s): %v", cfg.Redis.Addr, err)
	}

	if cfg.Bedrock.Region != "" && os.Getenv("AWS_REGION") == "" {
		os.Setenv("AWS_REGION", cfg.Bedrock.Region)
	}
	llm, err := classifier.NewClient(ctx, cfg.Bedrock.ModelID)
	if err != nil {
		log.Fatalf("Failed to initialize Bedrock client: %v", err)
	}

	platforms := cfg.EnabledPlatforms()
	clients := make(map[domain.Platform]platform.Client)
	var clientList []platform.Client
	if cfg.Platforms.X.Enabled && cfg.Platforms.X.BearerToken != "" {
		c := platform.NewXClient(ctx, cfg.Platforms.X.BearerToken)
		clients[domain.PlatformX] = c
		clientList = append(clientList, c)
	}
	if cfg.Platforms.Threads.Enabled && cfg.Platforms.Threads.AccessToken != "" {
		c := platform.NewThreadsClient(ctx, cfg.Platforms.Threads.AccessToken, cfg.Platforms.Threads.UserID)
		clients[domain.PlatformThreads] = c
		clientList = append(clientList, c)
	}

	armRepo := postgres.NewArmRepo(db)
	postRepo := postgres.NewPostRepo(db)
	patternRepo := postgres.NewPatternRepo(db)
	weightRepo := postgres.NewWeightRepo(db)
	publishedRepo := postgres.NewPublishedRepo(db)
	metricsRepo := postgres.NewMetricsRepo(db)

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
	g := guard.New(redisClient, cfg.HourlyLimits())

	deps := worker.Deps{
		Harvester: harvester.New(clientList, postRepo, harvester.Config{
			Queries:  cfg.Harvest.Queries,
			PerQuery: cfg.Harvest.PerQuery,
		}),
		Miner:     mnr,
		Synth:     syn,
		Bandit:    bd,
		Generator: generator.New(llm, generator.NewTopicRadar(cfg.Radar.Feeds)),
		Policy: policy.New(g, publishedRepo, policy.Config{
			NGExpressions: cfg.Policy.NGExpressions,
			MaxPerDay:     cfg.Policy.MaxPerDay,
			MinRunes:      cfg.Policy.MinRunes,
		}),
		Guard:     g,
		Learner:   learning.New(publishedRepo, metricsRepo, bd, cfg.Learning.Lookback()),
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
		}
	}

	pipeline := worker.NewPipeline(deps, worker.Config{
		Interval:   cfg.Worker.Interval(),
		WindowDays: cfg.Mining.WindowDays,
		Platforms:  platforms,
	})
	pipeline.Start()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-done

	log.Println("Shutting down...")
	pipeline.Stop()
	cancel()
}
