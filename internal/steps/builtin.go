package steps

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/xiaot623/gogo/contentflow/internal/adapter/llm"
	"github.com/xiaot623/gogo/contentflow/internal/domain"
)

// Step names of the content pipeline.
const (
	StepKeyword  = "keyword"
	StepResearch = "research"
	StepInsight  = "insight"
	StepIdea     = "idea"
	StepTitle    = "title"
	StepContent  = "content"
	StepImage    = "image"
	StepSEO      = "seo"
	StepPublish  = "publish"
)

// Vocabulary is the fixed set of step names, in pipeline order.
var Vocabulary = []string{
	StepKeyword, StepResearch, StepInsight, StepIdea, StepTitle,
	StepContent, StepImage, StepSEO, StepPublish,
}

const systemPrompt = "You are a content marketing assistant. Answer with plain text only."

// Builtins are the LLM-backed executors for the pipeline vocabulary.
type Builtins struct {
	client llm.LLMClient
	model  string
}

// NewBuiltins creates the built-in executors.
func NewBuiltins(client llm.LLMClient, model string) *Builtins {
	return &Builtins{client: client, model: model}
}

// Register adds every built-in executor whose step is not in skip.
func (b *Builtins) Register(r *Registry, skip map[string]bool) error {
	execs := map[string]ExecutorFunc{
		StepKeyword:  b.keyword,
		StepResearch: b.research,
		StepInsight:  b.insight,
		StepIdea:     b.idea,
		StepTitle:    b.title,
		StepContent:  b.content,
		StepImage:    b.image,
		StepSEO:      seo,
		StepPublish:  publishDryRun,
	}
	for _, name := range Vocabulary {
		if skip[name] {
			continue
		}
		if err := r.Register(name, execs[name]); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builtins) keyword(ctx context.Context, state *domain.RunState) (*domain.StepResult, error) {
	text, err := b.ask(ctx, fmt.Sprintf("List five SEO keywords, one per line, for a blog post about: %s", state.Context))
	if err != nil {
		return llmFailure(StepKeyword, err)
	}
	keywords := splitLines(text, 5)
	if len(keywords) == 0 {
		return domain.Retry("keyword: empty answer"), nil
	}
	return domain.Done(map[string]interface{}{"keywords": keywords},
		"keywords: "+strings.Join(keywords, ", ")), nil
}

func (b *Builtins) research(ctx context.Context, state *domain.RunState) (*domain.StepResult, error) {
	prompt := fmt.Sprintf("List the key facts a writer should know about %q, one per line.%s",
		state.Context, keywordHint(state))
	text, err := b.ask(ctx, prompt)
	if err != nil {
		return llmFailure(StepResearch, err)
	}
	insights := splitLines(text, 8)
	return domain.Done(map[string]interface{}{"insights": insights},
		fmt.Sprintf("research: %d facts", len(insights))), nil
}

func (b *Builtins) insight(ctx context.Context, state *domain.RunState) (*domain.StepResult, error) {
	text, err := b.ask(ctx, fmt.Sprintf("List the main pain points of readers interested in %q, one per line.", state.Context))
	if err != nil {
		return llmFailure(StepInsight, err)
	}
	points := splitLines(text, 5)
	return domain.Done(map[string]interface{}{"pain_points": points},
		fmt.Sprintf("insight: %d pain points", len(points))), nil
}

func (b *Builtins) idea(ctx context.Context, state *domain.RunState) (*domain.StepResult, error) {
	text, err := b.ask(ctx, fmt.Sprintf("Propose three blog post ideas about %q, one per line.%s",
		state.Context, keywordHint(state)))
	if err != nil {
		return llmFailure(StepIdea, err)
	}
	ideas := splitLines(text, 3)
	return domain.Done(map[string]interface{}{"ideas": ideas},
		fmt.Sprintf("idea: %d ideas", len(ideas))), nil
}

func (b *Builtins) title(ctx context.Context, state *domain.RunState) (*domain.StepResult, error) {
	text, err := b.ask(ctx, fmt.Sprintf("Write a blog title on the first line and a one sentence description on the second line for: %s.%s",
		state.Context, keywordHint(state)))
	if err != nil {
		return llmFailure(StepTitle, err)
	}
	lines := splitLines(text, 2)
	if len(lines) == 0 {
		return domain.Retry("title: empty answer"), nil
	}
	out := map[string]interface{}{"text": lines[0], "description": ""}
	if len(lines) > 1 {
		out["description"] = lines[1]
	}
	return domain.Done(out, "title: "+lines[0]), nil
}

func (b *Builtins) content(ctx context.Context, state *domain.RunState) (*domain.StepResult, error) {
	var title struct {
		Text string `json:"text"`
	}
	if _, err := state.Output(StepTitle, &title); err != nil {
		return nil, fmt.Errorf("decode title output: %w", err)
	}
	subject := title.Text
	if subject == "" {
		subject = state.Context
	}
	body, err := b.ask(ctx, fmt.Sprintf("Write a blog post titled %q.%s", subject, keywordHint(state)))
	if err != nil {
		return llmFailure(StepContent, err)
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return domain.Retry("content: empty answer"), nil
	}
	return domain.Done(map[string]interface{}{"body": body, "tags": keywords(state)},
		fmt.Sprintf("content: %d words", len(strings.Fields(body)))), nil
}

func (b *Builtins) image(ctx context.Context, state *domain.RunState) (*domain.StepResult, error) {
	text, err := b.ask(ctx, fmt.Sprintf("Describe in one sentence a cover image for a blog post about: %s", state.Context))
	if err != nil {
		return llmFailure(StepImage, err)
	}
	return domain.Done(map[string]interface{}{"prompt": strings.TrimSpace(text), "url": ""},
		"image: prompt ready"), nil
}

func seo(_ context.Context, state *domain.RunState) (*domain.StepResult, error) {
	var content struct {
		Body string `json:"body"`
	}
	var title struct {
		Text string `json:"text"`
	}
	if _, err := state.Output(StepContent, &content); err != nil {
		return nil, fmt.Errorf("decode content output: %w", err)
	}
	if _, err := state.Output(StepTitle, &title); err != nil {
		return nil, fmt.Errorf("decode title output: %w", err)
	}
	if content.Body == "" {
		return domain.Failed("seo: no content to analyze"), nil
	}

	score := seoScore(title.Text, content.Body, keywords(state))
	meta := map[string]interface{}{
		"title":       firstNonEmpty(title.Text, "Untitled"),
		"description": excerpt(content.Body, 150),
	}
	res := domain.Done(map[string]interface{}{"score": score}, fmt.Sprintf("seo: score=%d", score))
	res.Extra = map[string]interface{}{"seo_score": score, "meta": meta}
	return res, nil
}

func publishDryRun(_ context.Context, state *domain.RunState) (*domain.StepResult, error) {
	var content struct {
		Body string `json:"body"`
	}
	if _, err := state.Output(StepContent, &content); err != nil {
		return nil, fmt.Errorf("decode content output: %w", err)
	}
	if content.Body == "" {
		return domain.Failed("publish: nothing to publish"), nil
	}
	return domain.Done(map[string]interface{}{"published": false, "url": ""},
		"publish: dry run, no publisher endpoint configured"), nil
}

func (b *Builtins) ask(ctx context.Context, prompt string) (string, error) {
	return llm.Complete(ctx, b.client, b.model, systemPrompt, prompt)
}

// llmFailure asks for a retry on transient errors and fails otherwise.
// Both consume the same retry budget; only the trace differs.
func llmFailure(step string, err error) (*domain.StepResult, error) {
	var statusErr *llm.StatusError
	if errors.As(err, &statusErr) && statusErr.Temporary() {
		return domain.Retry(fmt.Sprintf("%s: transient llm error: %v", step, err)), nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.Retry(fmt.Sprintf("%s: llm timeout", step)), nil
	}
	return nil, fmt.Errorf("%s: %w", step, err)
}

func keywords(state *domain.RunState) []string {
	var out struct {
		Keywords []string `json:"keywords"`
	}
	if _, err := state.Output(StepKeyword, &out); err != nil {
		return nil
	}
	return out.Keywords
}

func keywordHint(state *domain.RunState) string {
	kws := keywords(state)
	if len(kws) == 0 {
		return ""
	}
	return " Use these keywords: " + strings.Join(kws, ", ") + "."
}

// splitLines turns a list-like answer into clean items, dropping bullets and numbering.
func splitLines(text string, max int) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimLeftFunc(line, func(r rune) bool {
			return unicode.IsSpace(r) || unicode.IsDigit(r) || strings.ContainsRune("-*•.)", r)
		})
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

// seoScore rates a draft from 0 to 100 on length, keyword coverage and title presence.
func seoScore(title, body string, kws []string) int {
	score := 0
	words := len(strings.Fields(body))
	switch {
	case words >= 800:
		score += 40
	case words >= 300:
		score += 25
	default:
		score += 10
	}
	if title != "" {
		score += 20
		if len(title) <= 60 {
			score += 10
		}
	}
	if len(kws) > 0 {
		lower := strings.ToLower(body)
		hits := 0
		for _, kw := range kws {
			if strings.Contains(lower, strings.ToLower(kw)) {
				hits++
			}
		}
		score += 30 * hits / len(kws)
	}
	if score > 100 {
		score = 100
	}
	return score
}

func excerpt(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
