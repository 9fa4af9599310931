// Package worker runs the agent's periodic pipeline: harvest trending
// posts, mine patterns, synthesize weights, inject priors, publish one
// post per platform, collect impression snapshots, and feed rewards
// back into the bandit.
package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jyouterean/kei-cargo-impression-agent/internal/bandit"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/domain"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/generator"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/guard"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/harvester"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/learning"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/miner"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/pkg/distlock"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/platform"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/policy"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/synth"
)

// metricWindows are the snapshot horizons collected after publish.
var metricWindows = []int{6, 24, 48}

// Harvesting, mining, synthesis, and learning are consumed through
// narrow interfaces so the pipeline is testable without Postgres or
// platform credentials.
type (
	Harvester interface {
		Harvest(ctx context.Context) (*harvester.Result, error)
	}
	Miner interface {
		Mine(ctx context.Context) (*miner.Result, error)
		Distribution(ctx context.Context, days int) (*domain.PatternDistribution, error)
	}
	Synthesizer interface {
		Synthesize(ctx context.Context) (*synth.Result, error)
	}
	Selector interface {
		SelectArm(ctx context.Context, platform domain.Platform, candidates *bandit.CandidateSets) (*bandit.Selection, error)
		InjectExternalPriors(ctx context.Context, platform domain.Platform, dist *domain.PatternDistribution) (*bandit.InjectionResult, error)
	}
	DraftWriter interface {
		Generate(ctx context.Context, sel *bandit.Selection) (*generator.Draft, error)
	}
	Reviewer interface {
		ReviewDraft(ctx context.Context, draft *generator.Draft) (*policy.Review, error)
	}
	PublishGuard interface {
		CheckPublish(ctx context.Context, platform domain.Platform) (*guard.Verdict, error)
	}
	Learner interface {
		RunLearningUpdate(ctx context.Context) (*learning.Result, error)
	}
	PublishedSink interface {
		Insert(ctx context.Context, p *domain.PublishedPost) error
		ListAwaitingMetrics(ctx context.Context, hours int, limit int) ([]domain.PublishedPost, error)
	}
	MetricSink interface {
		Insert(ctx context.Context, m *domain.MetricSnapshot) error
	}
	Snapshotter interface {
		Take(ctx context.Context) (string, error)
	}
)

// Deps wires the pipeline's collaborators. Snapshot may be nil.
type Deps struct {
	Harvester Harvester
	Miner     Miner
	Synth     Synthesizer
	Bandit    Selector
	Generator DraftWriter
	Policy    Reviewer
	Guard     PublishGuard
	Learner   Learner
	Published PublishedSink
	Metrics   MetricSink
	Snapshot  Snapshotter
	Clients   map[domain.Platform]platform.Client
	Lock      distlock.DistLock
}

// Config holds the worker tunables.
type Config struct {
	Interval   time.Duration
	WindowDays int
	Platforms  []domain.Platform
}

// Pipeline is the background worker.
type Pipeline struct {
	deps Deps
	cfg  Config

	totalCycles    int64
	totalPublished int64
	totalErrors    int64

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool
}

// NewPipeline creates the worker. Interval defaults to an hour and the
// mining window to 7 days.
func NewPipeline(deps Deps, cfg Config) *Pipeline {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 7
	}
	return &Pipeline{deps: deps, cfg: cfg}
}

// Start begins the background cycle loop.
func (p *Pipeline) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.mu.Unlock()

	log.Printf("[Pipeline] Starting with interval=%s, platforms=%d", p.cfg.Interval, len(p.cfg.Platforms))

	p.wg.Add(1)
	go p.loop()
}

// Stop gracefully stops the worker.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	log.Println("[Pipeline] Stopping...")
	p.wg.Wait()

	log.Printf("[Pipeline] Stopped. Stats: cycles=%d, published=%d, errors=%d",
		atomic.LoadInt64(&p.totalCycles),
		atomic.LoadInt64(&p.totalPublished),
		atomic.LoadInt64(&p.totalErrors))
}

// Stats returns cycle counters for the health endpoint.
func (p *Pipeline) Stats() map[string]int64 {
	return map[string]int64{
		"total_cycles":    atomic.LoadInt64(&p.totalCycles),
		"total_published": atomic.LoadInt64(&p.totalPublished),
		"total_errors":    atomic.LoadInt64(&p.totalErrors),
	}
}

func (p *Pipeline) loop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// First cycle right away rather than one interval in.
	p.guardedCycle(p.ctx)

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.guardedCycle(p.ctx)
		}
	}
}

// guardedCycle runs one cycle under the distributed lock so multiple
// worker instances never double-publish.
func (p *Pipeline) guardedCycle(ctx context.Context) {
	if p.deps.Lock != nil {
		acquired, err := p.deps.Lock.Acquire(ctx)
		if err != nil {
			log.Printf("[Pipeline] lock error: %v", err)
			atomic.AddInt64(&p.totalErrors, 1)
			return
		}
		if !acquired {
			log.Println("[Pipeline] another instance holds the lock, skipping tick")
			return
		}
		defer func() {
			if err := p.deps.Lock.Release(ctx); err != nil {
				log.Printf("[Pipeline] lock release error: %v", err)
			}
		}()
	}

	if err := p.RunCycle(ctx); err != nil {
		log.Printf("[Pipeline] cycle error: %v", err)
		atomic.AddInt64(&p.totalErrors, 1)
	}
	atomic.AddInt64(&p.totalCycles, 1)
}

// RunCycle executes one full pipeline pass. Stage failures are logged
// and the cycle moves on: a broken harvest must not stop learning from
// yesterday's posts.
func (p *Pipeline) RunCycle(ctx context.Context) error {
	type stage struct {
		name string
		run  func(context.Context) error
	}
	stages := []stage{
		{"harvest", p.runHarvest},
		{"mine", p.runMine},
		{"synthesize", p.runSynthesize},
		{"inject_priors", p.runInjectPriors},
		{"publish", p.runPublishAll},
		{"collect_metrics", p.RunCollectMetrics},
		{"learn", p.runLearn},
		{"snapshot", p.runSnapshot},
	}

	var failures int
	for _, s := range stages {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.run(ctx); err != nil {
			log.Printf("[Pipeline] stage %s: %v", s.name, err)
			failures++
		}
	}
	if failures == len(stages) {
		return fmt.Errorf("all %d pipeline stages failed", failures)
	}
	return nil
}

func (p *Pipeline) runHarvest(ctx context.Context) error {
	_, err := p.deps.Harvester.Harvest(ctx)
	return err
}

func (p *Pipeline) runMine(ctx context.Context) error {
	_, err := p.deps.Miner.Mine(ctx)
	return err
}

func (p *Pipeline) runSynthesize(ctx context.Context) error {
	_, err := p.deps.Synth.Synthesize(ctx)
	return err
}

func (p *Pipeline) runInjectPriors(ctx context.Context) error {
	dist, err := p.deps.Miner.Distribution(ctx, p.cfg.WindowDays)
	if err != nil {
		return err
	}
	for _, pf := range p.cfg.Platforms {
		if _, err := p.deps.Bandit.InjectExternalPriors(ctx, pf, dist); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) runPublishAll(ctx context.Context) error {
	var firstErr error
	for _, pf := range p.cfg.Platforms {
		if _, err := p.RunPublish(ctx, pf); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PublishOutcome reports one publish attempt.
type PublishOutcome struct {
	Published bool   `json:"published"`
	PostID    string `json:"post_id,omitempty"`
	ArmID     string `json:"arm_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// RunPublish runs the decision path for one platform: guard check, arm
// selection, draft generation, policy review, publish, persist.
func (p *Pipeline) RunPublish(ctx context.Context, pf domain.Platform) (*PublishOutcome, error) {
	client, ok := p.deps.Clients[pf]
	if !ok {
		return nil, fmt.Errorf("publish %s: no client configured", pf)
	}

	verdict, err := p.deps.Guard.CheckPublish(ctx, pf)
	if err != nil {
		return nil, fmt.Errorf("publish %s: guard: %w", pf, err)
	}
	if !verdict.Allowed {
		log.Printf("[Pipeline] publish %s skipped: %s", pf, verdict.Reason)
		return &PublishOutcome{Reason: verdict.Reason}, nil
	}

	sel, err := p.deps.Bandit.SelectArm(ctx, pf, nil)
	if err != nil {
		return nil, fmt.Errorf("publish %s: select arm: %w", pf, err)
	}

	draft, err := p.deps.Generator.Generate(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("publish %s: generate: %w", pf, err)
	}

	review, err := p.deps.Policy.ReviewDraft(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("publish %s: review: %w", pf, err)
	}
	if !review.Publishable {
		log.Printf("[Pipeline] publish %s draft blocked: %v", pf, review.Reasons)
		return &PublishOutcome{ArmID: sel.ArmID, Reason: fmt.Sprintf("blocked: %v", review.Reasons)}, nil
	}

	externalID, err := client.Publish(ctx, draft.Content)
	if err != nil {
		return nil, fmt.Errorf("publish %s: %w", pf, err)
	}

	post := &domain.PublishedPost{
		Platform:        pf,
		ExternalID:      externalID,
		ArmID:           sel.ArmID,
		Format:          sel.Format,
		HookType:        sel.HookType,
		Topic:           sel.Topic,
		Content:         draft.Content,
		PublishedAt:     time.Now(),
		FlagDuplicate:   review.Flags.Duplicate,
		FlagLowQuality:  review.Flags.LowQuality,
		FlagOverPosting: review.Flags.OverPosting,
	}
	if err := p.deps.Published.Insert(ctx, post); err != nil {
		// The post is live; losing the record loses the learning signal.
		return nil, fmt.Errorf("publish %s: persist %s: %w", pf, externalID, err)
	}

	atomic.AddInt64(&p.totalPublished, 1)
	return &PublishOutcome{Published: true, PostID: post.ID, ArmID: sel.ArmID}, nil
}

// RunCollectMetrics fetches impression counts for posts whose 6/24/48h
// windows have elapsed without a snapshot.
func (p *Pipeline) RunCollectMetrics(ctx context.Context) error {
	var firstErr error
	for _, hours := range metricWindows {
		posts, err := p.deps.Published.ListAwaitingMetrics(ctx, hours, 100)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, post := range posts {
			client, ok := p.deps.Clients[post.Platform]
			if !ok || post.ExternalID == "" {
				continue
			}
			impressions, err := client.Impressions(ctx, post.ExternalID)
			if err != nil {
				log.Printf("[Pipeline] impressions %s/%s: %v", post.Platform, post.ExternalID, err)
				continue
			}
			snap := &domain.MetricSnapshot{
				PublishedPostID:   post.ID,
				HoursAfterPublish: hours,
				ImpressionCount:   impressions,
				CollectedAt:       time.Now(),
			}
			if err := p.deps.Metrics.Insert(ctx, snap); err != nil {
				log.Printf("[Pipeline] store snapshot %s/%dh: %v", post.ID, hours, err)
			}
		}
	}
	return firstErr
}

func (p *Pipeline) runLearn(ctx context.Context) error {
	_, err := p.deps.Learner.RunLearningUpdate(ctx)
	return err
}

func (p *Pipeline) runSnapshot(ctx context.Context) error {
	if p.deps.Snapshot == nil {
		return nil
	}
	_, err := p.deps.Snapshot.Take(ctx)
	return err
}
