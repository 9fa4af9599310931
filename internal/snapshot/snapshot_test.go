package snapshot

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/jyouterean/kei-cargo-impression-agent/internal/domain"
)

type fakeUploader struct {
	puts map[string][]byte
}

func (f *fakeUploader) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.puts == nil {
		f.puts = make(map[string][]byte)
	}
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.puts[*params.Key] = body
	return &s3.PutObjectOutput{}, nil
}

type fakeArms struct{ arms []domain.Arm }

func (f *fakeArms) List(context.Context, string, int) ([]domain.Arm, error) {
	return f.arms, nil
}

type fakeWeights struct{}

func (fakeWeights) CurrentWeights(context.Context, domain.Platform) (domain.WeightSet, error) {
	return domain.WeightSet{Formats: map[string]float64{"listicle": 1.4}}, nil
}

func TestTake(t *testing.T) {
	up := &fakeUploader{}
	w := &Writer{
		client: up,
		arms: &fakeArms{arms: []domain.Arm{{
			ArmID: "x:listicle:curiosity:kei_trucks:any:morning:monday:any",
			Alpha: 3, Beta: 2,
		}}},
		weights: fakeWeights{},
		cfg: Config{
			Bucket:    "agent-state",
			Prefix:    "impression-agent/state/",
			Platforms: []domain.Platform{domain.PlatformX},
		},
		now: func() time.Time { return time.Date(2026, 8, 17, 9, 0, 0, 0, time.UTC) },
	}

	key, err := w.Take(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if key != "impression-agent/state/state_20260817T090000Z.json.gz" {
		t.Errorf("key = %s", key)
	}
	if len(up.puts) != 2 {
		t.Fatalf("uploads = %d, want timestamped plus latest", len(up.puts))
	}
	if _, ok := up.puts["impression-agent/state/latest.json.gz"]; !ok {
		t.Error("latest key missing")
	}

	gz, err := gzip.NewReader(bytes.NewReader(up.puts[key]))
	if err != nil {
		t.Fatal(err)
	}
	raw, err := io.ReadAll(gz)
	if err != nil {
		t.Fatal(err)
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		t.Fatal(err)
	}
	if len(state.Arms[domain.PlatformX]) != 1 {
		t.Errorf("arms = %+v", state.Arms)
	}
	if state.Weights[domain.PlatformX].Formats["listicle"] != 1.4 {
		t.Errorf("weights = %+v", state.Weights)
	}
	if state.Truncated {
		t.Error("small snapshot must not report truncation")
	}
}
