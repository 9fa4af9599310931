package generator

import (
	"fmt"
	"sync"

	"github.com/osteele/liquid"
)

// scaffolds are the per-format prompt skeletons. They describe the
// shape the LLM must fill, parameterized on the bandit's choices.
var scaffolds = map[string]string{
	"listicle":  "Write a {{ length_hint }} listicle post about {{ topic }} with a {{ hook_type }} hook. Number each item. {{ angle_hint }}",
	"question":  "Write a {{ length_hint }} post about {{ topic }} that opens with a {{ hook_type }}-driven question to the reader. {{ angle_hint }}",
	"statement": "Write a {{ length_hint }} post stating one strong, specific claim about {{ topic }} with a {{ hook_type }} hook. {{ angle_hint }}",
	"story":     "Write a {{ length_hint }} first-person micro-story about {{ topic }} that lands on a {{ hook_type }} note. {{ angle_hint }}",
	"howto":     "Write a {{ length_hint }} how-to post about {{ topic }} with a {{ hook_type }} hook. Give concrete steps. {{ angle_hint }}",
	"hot_take":  "Write a {{ length_hint }} contrarian hot take about {{ topic }} delivered with a {{ hook_type }} hook. Be specific, not edgy for its own sake. {{ angle_hint }}",
}

// ScaffoldEngine renders the format scaffolds with Liquid, caching
// parsed templates.
type ScaffoldEngine struct {
	engine *liquid.Engine
	cache  sync.Map // format -> *liquid.Template
}

// NewScaffoldEngine creates the scaffold renderer.
func NewScaffoldEngine() *ScaffoldEngine {
	return &ScaffoldEngine{engine: liquid.NewEngine()}
}

// Render produces the generation prompt for a format. Unknown formats
// error rather than silently producing an off-shape post.
func (se *ScaffoldEngine) Render(format string, bindings map[string]any) (string, error) {
	tpl, err := se.template(format)
	if err != nil {
		return "", err
	}
	out, err := tpl.RenderString(bindings)
	if err != nil {
		return "", fmt.Errorf("render scaffold %s: %w", format, err)
	}
	return out, nil
}

func (se *ScaffoldEngine) template(format string) (*liquid.Template, error) {
	if cached, ok := se.cache.Load(format); ok {
		return cached.(*liquid.Template), nil
	}
	source, ok := scaffolds[format]
	if !ok {
		return nil, fmt.Errorf("no scaffold for format %q", format)
	}
	tpl, err := se.engine.ParseString(source)
	if err != nil {
		return nil, fmt.Errorf("parse scaffold %s: %w", format, err)
	}
	se.cache.Store(format, tpl)
	return tpl, nil
}
