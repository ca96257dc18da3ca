package answer

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/atlas/core"
	"github.com/tmc/langchaingo/llms"
)

const (
	defaultTokenBudget = 2048

	// minExcerptTokens is the smallest useful excerpt body. Entities whose
	// text cannot get at least this much of the remaining budget are
	// skipped rather than reduced to a fragment.
	minExcerptTokens = 16
)

// Attribution identifies one context source shown to the model and surfaced
// to the caller.
type Attribution struct {
	Id       core.ID
	Title    string
	Location string
	Period   string
	Score    float32
}

// Excerpt is one rendered context block.
type Excerpt struct {
	Attribution Attribution
	Text        string
	Truncated   bool
}

// ContextBundle is the assembled, token-bounded context for one query.
// Excerpts appear in rank order; Attributions mirrors them one to one.
type ContextBundle struct {
	Excerpts     []Excerpt
	Attributions []Attribution

	// Truncated is set when any excerpt was shortened or skipped to meet
	// the token budget.
	Truncated bool
}

// Empty reports whether the bundle carries no grounding material.
func (b *ContextBundle) Empty() bool {
	return len(b.Excerpts) == 0
}

// Render produces the numbered context block fed to the generator.
func (b *ContextBundle) Render() string {
	if b.Empty() {
		return ""
	}
	var sb strings.Builder
	for i, ex := range b.Excerpts {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(excerptHeader(i+1, ex.Attribution))
		sb.WriteString("\n")
		sb.WriteString(ex.Text)
		if ex.Truncated {
			sb.WriteString(" […]")
		}
	}
	return sb.String()
}

// Assembler renders ranked entities into a bounded context bundle.
type Assembler struct {
	budget int
	model  string
	logger *slog.Logger
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithTokenBudget sets the bundle token budget. Default is 2048.
func WithTokenBudget(budget int) AssemblerOption {
	return func(a *Assembler) {
		if budget > 0 {
			a.budget = budget
		}
	}
}

// WithTokenModel sets the model name used for token counting.
func WithTokenModel(model string) AssemblerOption {
	return func(a *Assembler) {
		if model != "" {
			a.model = model
		}
	}
}

// NewAssembler creates a context assembler.
func NewAssembler(opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		budget: defaultTokenBudget,
		model:  "gpt-4",
		logger: slog.Default().With("component", "assembler"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble builds the context bundle for ranked results. Entities are taken
// highest rank first. An entity whose text overruns the remaining budget is
// truncated, not dropped; its attribution always survives intact. An entity
// that cannot fit even a minimal excerpt is skipped and the bundle marked
// truncated.
func (a *Assembler) Assemble(results []core.RankedResult, entities []*core.GeoEntity) *ContextBundle {
	byID := make(map[core.ID]*core.GeoEntity, len(entities))
	for _, e := range entities {
		byID[e.Id] = e
	}

	bundle := &ContextBundle{}
	remaining := a.budget

	for _, result := range results {
		entity, ok := byID[result.Id]
		if !ok {
			continue
		}
		attribution := attributionFor(entity, result.CombinedScore)
		header := excerptHeader(len(bundle.Excerpts)+1, attribution)
		headerTokens := llms.CountTokens(a.model, header)

		textTokens := llms.CountTokens(a.model, entity.Text)
		if headerTokens+textTokens <= remaining {
			bundle.Excerpts = append(bundle.Excerpts, Excerpt{Attribution: attribution, Text: entity.Text})
			bundle.Attributions = append(bundle.Attributions, attribution)
			remaining -= headerTokens + textTokens
			continue
		}

		available := remaining - headerTokens
		if available < minExcerptTokens {
			a.logger.Debug("skipping excerpt, budget exhausted", "id", entity.Id, "remaining", remaining)
			bundle.Truncated = true
			continue
		}

		text := truncateToTokens(a.model, entity.Text, available)
		if text == "" {
			bundle.Truncated = true
			continue
		}
		bundle.Excerpts = append(bundle.Excerpts, Excerpt{Attribution: attribution, Text: text, Truncated: true})
		bundle.Attributions = append(bundle.Attributions, attribution)
		remaining -= headerTokens + llms.CountTokens(a.model, text)
		bundle.Truncated = true
	}

	return bundle
}

// truncateToTokens shortens text until it fits the token allowance. Cuts
// always land on rune boundaries; when the text has spaces the cut backs
// up to the last one, but unsegmented scripts like Chinese have none, so a
// rune boundary is the only guarantee.
func truncateToTokens(model, text string, allowance int) string {
	for llms.CountTokens(model, text) > allowance {
		cut := len(text) * 3 / 4
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			return ""
		}
		text = text[:cut]
		if i := strings.LastIndexByte(text, ' '); i > 0 {
			text = text[:i]
		}
	}
	return strings.TrimSpace(text)
}

// attributionFor derives the attribution line fields. Metadata entries win
// over values derived from geometry and era, so ingested address or period
// strings pass through untouched.
func attributionFor(entity *core.GeoEntity, score float32) Attribution {
	attribution := Attribution{
		Id:    entity.Id,
		Title: entity.Title,
		Score: score,
	}

	if addr := entity.Metadata["address"]; addr != "" {
		attribution.Location = addr
	} else if entity.Geometry != nil {
		p := entity.Geometry.Point
		attribution.Location = fmt.Sprintf("%.4f, %.4f", p.Lat, p.Lon)
	}

	if period := entity.Metadata["period"]; period != "" {
		attribution.Period = period
	} else if entity.Era != nil {
		attribution.Period = formatEra(*entity.Era)
	}

	return attribution
}

func formatEra(era core.TimeRange) string {
	switch {
	case era.Start == core.TimeMin && era.End == core.TimeMax:
		return ""
	case era.Start == core.TimeMin:
		return fmt.Sprintf("until %d", era.End)
	case era.End == core.TimeMax:
		return fmt.Sprintf("since %d", era.Start)
	default:
		return fmt.Sprintf("%d to %d", era.Start, era.End)
	}
}

func excerptHeader(n int, attribution Attribution) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%d] %s", n, attribution.Title)
	details := make([]string, 0, 2)
	if attribution.Location != "" {
		details = append(details, attribution.Location)
	}
	if attribution.Period != "" {
		details = append(details, attribution.Period)
	}
	if len(details) > 0 {
		fmt.Fprintf(&sb, " (%s)", strings.Join(details, "; "))
	}
	return sb.String()
}
