package miner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/jyouterean/kei-cargo-impression-agent/internal/domain"
)

type fakePostSource struct {
	posts []domain.HarvestedPost
	buzz  map[string]float64
}

func (f *fakePostSource) ListEligible(_ context.Context, _ string, minBuzz float64, limit int) ([]domain.HarvestedPost, error) {
	var out []domain.HarvestedPost
	for _, p := range f.posts {
		if !p.SpamFlagged && p.BuzzScore >= minBuzz {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BuzzScore > out[j].BuzzScore })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakePostSource) BuzzScores(_ context.Context, ids []string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, id := range ids {
		if b, ok := f.buzz[id]; ok {
			out[id] = b
		}
	}
	return out, nil
}

type fakePatternStore struct {
	patterns  []domain.Pattern
	insertErr error
}

func (f *fakePatternStore) Insert(_ context.Context, p *domain.Pattern) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.patterns = append(f.patterns, *p)
	return nil
}

func (f *fakePatternStore) MinedPostIDs(context.Context) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	for _, p := range f.patterns {
		out[p.PostID] = struct{}{}
	}
	return out, nil
}

func (f *fakePatternStore) ListRecent(_ context.Context, since time.Time, limit int) ([]domain.Pattern, error) {
	var out []domain.Pattern
	for _, p := range f.patterns {
		if !p.ExtractedAt.Before(since) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExtractedAt.After(out[j].ExtractedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// scriptedClassifier returns a fixed extraction per post content.
type scriptedClassifier struct {
	byContent map[string]*domain.PatternExtraction
	errFor    map[string]error
	calls     int
}

func (c *scriptedClassifier) ExtractPattern(_ context.Context, text string) (*domain.PatternExtraction, error) {
	c.calls++
	if err, ok := c.errFor[text]; ok {
		return nil, err
	}
	if ex, ok := c.byContent[text]; ok {
		return ex, nil
	}
	return &domain.PatternExtraction{Format: "statement", HookType: "curiosity", PayloadType: "tip", QualityScore: 0.9}, nil
}

func newTestMiner(posts *fakePostSource, store *fakePatternStore, cls Classifier) *Miner {
	m := New(posts, store, cls, Config{Language: "ja", BuzzFloor: 0.5})
	m.sleep = func(context.Context, time.Duration) {} // no rate-limit pauses in tests
	return m
}

func makePost(id string, buzzScore float64) domain.HarvestedPost {
	return domain.HarvestedPost{
		ID:        id,
		Platform:  domain.PlatformX,
		Content:   "content-" + id,
		Language:  "ja",
		BuzzScore: buzzScore,
		PostedAt:  time.Now().Add(-2 * time.Hour),
	}
}

func TestMineQualityGate(t *testing.T) {
	// 10 posts: 5 high quality, 5 low quality. No taboo flags.
	posts := &fakePostSource{}
	cls := &scriptedClassifier{byContent: map[string]*domain.PatternExtraction{}}
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("p%d", i)
		posts.posts = append(posts.posts, makePost(id, 5.0-float64(i)*0.1))
		q := 0.9
		if i >= 5 {
			q = 0.3
		}
		cls.byContent["content-"+id] = &domain.PatternExtraction{
			Format: "listicle", HookType: "curiosity", PayloadType: "tip", QualityScore: q,
		}
	}

	store := &fakePatternStore{}
	res, err := newTestMiner(posts, store, cls).Mine(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if res.Extracted != 5 || res.Skipped != 5 {
		t.Errorf("extracted=%d skipped=%d, want 5/5", res.Extracted, res.Skipped)
	}
	if res.Processed != 10 || len(res.Errors) != 0 {
		t.Errorf("processed=%d errors=%v, want 10 and none", res.Processed, res.Errors)
	}
	if len(store.patterns) != 5 {
		t.Errorf("persisted %d patterns, want 5", len(store.patterns))
	}
}

func TestMineTabooGate(t *testing.T) {
	posts := &fakePostSource{posts: []domain.HarvestedPost{makePost("a", 3), makePost("b", 2)}}
	cls := &scriptedClassifier{byContent: map[string]*domain.PatternExtraction{
		"content-a": {Format: "hot_take", QualityScore: 0.9, TabooFlags: []string{"political", "medical"}},
		"content-b": {Format: "hot_take", QualityScore: 0.9, TabooFlags: []string{"political"}},
	}}

	store := &fakePatternStore{}
	res, err := newTestMiner(posts, store, cls).Mine(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Extracted != 1 || res.Skipped != 1 {
		t.Errorf("extracted=%d skipped=%d, want 1 (single flag ok) / 1 (two flags rejected)", res.Extracted, res.Skipped)
	}
}

func TestMineSkipsAlreadyMined(t *testing.T) {
	posts := &fakePostSource{posts: []domain.HarvestedPost{makePost("a", 3), makePost("b", 2)}}
	store := &fakePatternStore{patterns: []domain.Pattern{{PostID: "a", QualityScore: 0.8, ExtractedAt: time.Now()}}}
	cls := &scriptedClassifier{}

	res, err := newTestMiner(posts, store, cls).Mine(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Processed != 1 || cls.calls != 1 {
		t.Errorf("processed=%d calls=%d, want 1/1 (post a already mined)", res.Processed, cls.calls)
	}
}

func TestMineClassifierErrorsAreNonFatal(t *testing.T) {
	posts := &fakePostSource{posts: []domain.HarvestedPost{makePost("a", 3), makePost("b", 2), makePost("c", 1)}}
	cls := &scriptedClassifier{errFor: map[string]error{"content-b": errors.New("timeout")}}

	store := &fakePatternStore{}
	res, err := newTestMiner(posts, store, cls).Mine(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Processed != 3 || res.Extracted != 2 || len(res.Errors) != 1 {
		t.Errorf("processed=%d extracted=%d errors=%v, want batch to continue past the failure", res.Processed, res.Extracted, res.Errors)
	}
}

func TestMineRespectsBatchSize(t *testing.T) {
	posts := &fakePostSource{}
	for i := 0; i < 60; i++ {
		posts.posts = append(posts.posts, makePost(fmt.Sprintf("p%02d", i), 10-float64(i)*0.1))
	}
	cls := &scriptedClassifier{}

	m := newTestMiner(posts, &fakePatternStore{}, cls)
	res, err := m.Mine(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Processed != DefaultBatchSize {
		t.Errorf("processed=%d, want batch cap %d", res.Processed, DefaultBatchSize)
	}
}

func TestMineNoEligiblePosts(t *testing.T) {
	res, err := newTestMiner(&fakePostSource{}, &fakePatternStore{}, &scriptedClassifier{}).Mine(context.Background())
	if err != nil {
		t.Fatalf("no eligible posts is not an error, got %v", err)
	}
	if res.Processed != 0 || res.Extracted != 0 {
		t.Errorf("expected zero counts, got %+v", res)
	}
}

func TestDistributionAggregation(t *testing.T) {
	now := time.Now()
	store := &fakePatternStore{patterns: []domain.Pattern{
		{PostID: "a", Format: "listicle", HookType: "curiosity", PayloadType: "tip", QualityScore: 0.9, ExtractedAt: now.Add(-1 * time.Hour)},
		{PostID: "b", Format: "listicle", HookType: "contrarian", PayloadType: "tip", QualityScore: 0.9, ExtractedAt: now.Add(-2 * time.Hour)},
		{PostID: "c", Format: "question", HookType: "curiosity", PayloadType: "news", QualityScore: 0.9, ExtractedAt: now.Add(-3 * time.Hour)},
		// outside the 7-day window
		{PostID: "old", Format: "story", HookType: "empathy", PayloadType: "tip", QualityScore: 0.9, ExtractedAt: now.Add(-8 * 24 * time.Hour)},
	}}
	posts := &fakePostSource{buzz: map[string]float64{"a": 4.0, "b": 2.0}} // c missing: defaults to 0

	m := newTestMiner(posts, store, &scriptedClassifier{})
	dist, err := m.Distribution(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}

	if dist.PatternCount != 3 {
		t.Errorf("PatternCount = %d, want 3 (window excludes the old one)", dist.PatternCount)
	}

	listicle := dist.Formats["listicle"]
	if listicle.Count != 2 || math.Abs(listicle.AvgBuzz-3.0) > 1e-9 {
		t.Errorf("listicle = %+v, want count 2 avg 3.0", listicle)
	}
	question := dist.Formats["question"]
	if question.Count != 1 || question.AvgBuzz != 0 {
		t.Errorf("question = %+v, want count 1 avg 0 (missing source post)", question)
	}
	if _, ok := dist.Formats["story"]; ok {
		t.Error("story is outside the window and must be absent")
	}

	if got := dist.HookTypes["curiosity"]; got.Count != 2 || math.Abs(got.AvgBuzz-2.0) > 1e-9 {
		t.Errorf("curiosity = %+v, want count 2 avg 2.0", got)
	}
	if got := dist.PayloadTypes["tip"]; got.Count != 2 || math.Abs(got.AvgBuzz-3.0) > 1e-9 {
		t.Errorf("tip = %+v, want count 2 avg 3.0", got)
	}
}

func TestDistributionEmpty(t *testing.T) {
	m := newTestMiner(&fakePostSource{}, &fakePatternStore{}, &scriptedClassifier{})
	dist, err := m.Distribution(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if dist.PatternCount != 0 || len(dist.Formats) != 0 || len(dist.HookTypes) != 0 || len(dist.PayloadTypes) != 0 {
		t.Errorf("empty store must yield an empty distribution, got %+v", dist)
	}
}
