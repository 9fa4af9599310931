package policy

import (
	"context"
	"testing"
	"time"

	"github.com/jyouterean/kei-cargo-impression-agent/internal/domain"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/generator"
)

type fakeDup struct{ seen bool }

func (f *fakeDup) SeenContent(context.Context, domain.Platform, string) (bool, error) {
	return f.seen, nil
}

type fakeCounter struct{ count int }

func (f *fakeCounter) CountSince(context.Context, domain.Platform, time.Time) (int, error) {
	return f.count, nil
}

func draft(content string) *generator.Draft {
	return &generator.Draft{
		Platform: domain.PlatformX,
		Format:   "statement",
		Topic:    "kei_trucks",
		Content:  content,
	}
}

func newEngine(dup *fakeDup, counter *fakeCounter) *Engine {
	return New(dup, counter, Config{
		NGExpressions: []string{"guaranteed returns", "miracle cure"},
		MaxPerDay:     8,
		MinRunes:      20,
	})
}

func TestReviewCleanDraft(t *testing.T) {
	r, err := newEngine(&fakeDup{}, &fakeCounter{count: 2}).
		ReviewDraft(context.Background(), draft("The 550cc era kei trucks are criminally underrated for farm work."))
	if err != nil {
		t.Fatal(err)
	}
	if !r.Publishable {
		t.Errorf("clean draft blocked: %v", r.Reasons)
	}
	if r.Flags.Duplicate || r.Flags.LowQuality || r.Flags.OverPosting {
		t.Errorf("clean draft flagged: %+v", r.Flags)
	}
}

func TestReviewBlocksNGExpression(t *testing.T) {
	r, err := newEngine(&fakeDup{}, &fakeCounter{}).
		ReviewDraft(context.Background(), draft("Kei truck imports are Guaranteed Returns on your money."))
	if err != nil {
		t.Fatal(err)
	}
	if r.Publishable {
		t.Error("NG expression must block the draft")
	}
}

func TestReviewBlocksDuplicate(t *testing.T) {
	r, err := newEngine(&fakeDup{seen: true}, &fakeCounter{}).
		ReviewDraft(context.Background(), draft("The 550cc era kei trucks are criminally underrated."))
	if err != nil {
		t.Fatal(err)
	}
	if r.Publishable {
		t.Error("duplicates must not republish")
	}
	if !r.Flags.Duplicate {
		t.Error("duplicate flag must be set for the learning record")
	}
}

func TestReviewFlagsLowQuality(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"too short", "nice truck"},
		{"shouting", "KEI TRUCKS ARE THE BEST VEHICLES EVER MADE PERIOD"},
		{"exclamation heavy", "Best truck ever!!! Buy one now!!! You will not regret it!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := newEngine(&fakeDup{}, &fakeCounter{}).
				ReviewDraft(context.Background(), draft(tt.content))
			if err != nil {
				t.Fatal(err)
			}
			if !r.Publishable {
				t.Error("low quality is a soft flag, not a block")
			}
			if !r.Flags.LowQuality {
				t.Errorf("content %q not flagged", tt.content)
			}
		})
	}
}

func TestReviewFlagsOverPosting(t *testing.T) {
	r, err := newEngine(&fakeDup{}, &fakeCounter{count: 8}).
		ReviewDraft(context.Background(), draft("The 550cc era kei trucks are criminally underrated for farm work."))
	if err != nil {
		t.Fatal(err)
	}
	if !r.Publishable {
		t.Error("over-posting is a soft flag, not a block")
	}
	if !r.Flags.OverPosting {
		t.Error("over-posting flag must be set at the daily cap")
	}
}
