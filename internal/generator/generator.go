// Package generator turns a bandit selection into post copy: a Liquid
// scaffold shapes the prompt, the topic radar contributes a fresh
// angle, and the LLM writes the draft.
package generator

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jyouterean/kei-cargo-impression-agent/internal/bandit"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/domain"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/pkg/logger"
)

// Completer is the LLM completion entrypoint, satisfied by the
// classifier client.
type Completer interface {
	Complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error)
}

// Draft is a generated post awaiting policy review and publish.
type Draft struct {
	Platform domain.Platform `json:"platform"`
	ArmID    string          `json:"arm_id"`
	Format   string          `json:"format"`
	HookType string          `json:"hook_type"`
	Topic    string          `json:"topic"`
	Content  string          `json:"content"`
}

// platformMaxRunes caps drafts to each platform's post length.
var platformMaxRunes = map[domain.Platform]int{
	domain.PlatformX:       280,
	domain.PlatformThreads: 500,
}

const voiceSystemPrompt = `You write social media posts for a kei truck and kei van enthusiast account. Voice: knowledgeable hobbyist, concrete details, no hype words, no hashtag stuffing, at most one emoji. Respond with ONLY the post text — no quotes, no preamble, no explanations.`

// Generator assembles prompts and produces drafts.
type Generator struct {
	llm       Completer
	scaffolds *ScaffoldEngine
	radar     *TopicRadar
}

// New creates a Generator. A nil radar disables fresh-angle hints.
func New(llm Completer, radar *TopicRadar) *Generator {
	return &Generator{llm: llm, scaffolds: NewScaffoldEngine(), radar: radar}
}

// Generate writes one draft for the bandit's selection. The draft is
// trimmed to the platform's length cap at a word boundary.
func (g *Generator) Generate(ctx context.Context, sel *bandit.Selection) (*Draft, error) {
	angleHint := ""
	if g.radar != nil {
		if angles := g.radar.FreshAngles(ctx, sel.Topic, 1); len(angles) > 0 {
			angleHint = fmt.Sprintf("If it fits naturally, reference this recent development: %q.", angles[0].Title)
		}
	}

	platform := domain.Platform(sel.Platform)
	maxRunes := platformMaxRunes[platform]
	if maxRunes == 0 {
		maxRunes = 280
	}

	prompt, err := g.scaffolds.Render(sel.Format, map[string]any{
		"topic":       strings.ReplaceAll(sel.Topic, "_", " "),
		"hook_type":   sel.HookType,
		"length_hint": fmt.Sprintf("under %d characters", maxRunes),
		"angle_hint":  angleHint,
	})
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	raw, err := g.llm.Complete(ctx, voiceSystemPrompt, prompt, 400, 0.8)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	content := SanitizeDraft(raw, maxRunes)
	if content == "" {
		return nil, fmt.Errorf("generate: model returned empty draft")
	}

	logger.Debug("draft generated",
		"platform", sel.Platform,
		"format", sel.Format,
		"topic", sel.Topic,
		"length", utf8.RuneCountInString(content))

	return &Draft{
		Platform: platform,
		ArmID:    sel.ArmID,
		Format:   sel.Format,
		HookType: sel.HookType,
		Topic:    sel.Topic,
		Content:  content,
	}, nil
}

// SanitizeDraft strips the wrapping the model tends to add (quotes,
// code fences, leading labels) and trims to the rune cap at a word
// boundary.
func SanitizeDraft(raw string, maxRunes int) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	s = strings.TrimSpace(s)

	if maxRunes > 0 && utf8.RuneCountInString(s) > maxRunes {
		runes := []rune(s)
		cut := string(runes[:maxRunes])
		if idx := strings.LastIndexAny(cut, " \n"); idx > maxRunes/2 {
			cut = cut[:idx]
		}
		s = strings.TrimSpace(cut)
	}
	return s
}
