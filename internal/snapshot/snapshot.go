// Package snapshot writes periodic JSON dumps of the learning state
// (arms and current weights) to S3, so the posteriors survive a lost
// database and a bad learning run can be diffed against history.
package snapshot

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/jyouterean/kei-cargo-impression-agent/internal/domain"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/pkg/logger"
)

// ArmSource lists arms per platform. Satisfied by the arm repository.
type ArmSource interface {
	List(ctx context.Context, platform string, limit int) ([]domain.Arm, error)
}

// WeightSource resolves the current weight set. Satisfied by the
// synthesizer.
type WeightSource interface {
	CurrentWeights(ctx context.Context, platform domain.Platform) (domain.WeightSet, error)
}

// uploader is the slice of the S3 client we use, extracted for tests.
type uploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config holds the S3 destination.
type Config struct {
	Bucket    string
	Prefix    string // e.g. "impression-agent/state/"
	Region    string
	Platforms []domain.Platform
}

// State is the snapshot payload.
type State struct {
	TakenAt   time.Time                            `json:"taken_at"`
	Arms      map[domain.Platform][]domain.Arm     `json:"arms"`
	Weights   map[domain.Platform]domain.WeightSet `json:"weights"`
	ArmLimit  int                                  `json:"arm_limit"`
	Truncated bool                                 `json:"truncated"`
}

const armLimit = 5000

// Writer takes and uploads snapshots.
type Writer struct {
	client  uploader
	arms    ArmSource
	weights WeightSource
	cfg     Config
	now     func() time.Time
}

// NewWriter creates a snapshot writer using the default AWS credential
// chain.
func NewWriter(ctx context.Context, arms ArmSource, weights WeightSource, cfg Config) (*Writer, error) {
	region := cfg.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
		if region == "" {
			region = "us-east-1"
		}
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logger.Info("snapshot writer initialized", "bucket", cfg.Bucket, "prefix", cfg.Prefix, "region", region)
	return &Writer{
		client:  s3.NewFromConfig(awsCfg),
		arms:    arms,
		weights: weights,
		cfg:     cfg,
		now:     time.Now,
	}, nil
}

// Take collects state for every configured platform and uploads one
// gzipped JSON object keyed by timestamp, plus a stable "latest" key
// for restores.
func (w *Writer) Take(ctx context.Context) (string, error) {
	state := State{
		TakenAt:  w.now().UTC(),
		Arms:     make(map[domain.Platform][]domain.Arm, len(w.cfg.Platforms)),
		Weights:  make(map[domain.Platform]domain.WeightSet, len(w.cfg.Platforms)),
		ArmLimit: armLimit,
	}

	for _, platform := range w.cfg.Platforms {
		arms, err := w.arms.List(ctx, string(platform), armLimit)
		if err != nil {
			return "", fmt.Errorf("snapshot: list arms %s: %w", platform, err)
		}
		if len(arms) == armLimit {
			state.Truncated = true
		}
		state.Arms[platform] = arms

		ws, err := w.weights.CurrentWeights(ctx, platform)
		if err != nil {
			return "", fmt.Errorf("snapshot: weights %s: %w", platform, err)
		}
		state.Weights[platform] = ws
	}

	payload, err := encodeState(&state)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("%sstate_%s.json.gz", w.cfg.Prefix, state.TakenAt.Format("20060102T150405Z"))
	for _, k := range []string{key, w.cfg.Prefix + "latest.json.gz"} {
		_, err = w.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:          aws.String(w.cfg.Bucket),
			Key:             aws.String(k),
			Body:            bytes.NewReader(payload),
			ContentType:     aws.String("application/json"),
			ContentEncoding: aws.String("gzip"),
		})
		if err != nil {
			return "", fmt.Errorf("snapshot: upload %s: %w", k, err)
		}
	}

	logger.Info("state snapshot uploaded", "key", key, "bytes", len(payload))
	return key, nil
}

func encodeState(state *State) ([]byte, error) {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("snapshot: serialize: %w", err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return nil, fmt.Errorf("snapshot: compress: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("snapshot: compress: %w", err)
	}
	return buf.Bytes(), nil
}
