package steps

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/contentflow/internal/adapter/llm"
	"github.com/xiaot623/gogo/contentflow/internal/domain"
)

type failingLLM struct {
	err error
}

func (f *failingLLM) CreateChatCompletion(context.Context, *llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
	return nil, f.err
}

func newState(t *testing.T, seq ...string) *domain.RunState {
	t.Helper()
	return domain.NewRunState("run_test", "Start workflow", seq, time.Now())
}

func setOutput(t *testing.T, st *domain.RunState, step string, v interface{}) {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	st.Outputs[step] = raw
}

func TestRegisterBuiltinsCoversVocabulary(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, NewBuiltins(llm.NewMockClient(), "mock").Register(r, map[string]bool{StepPublish: true}))

	for _, name := range Vocabulary {
		if name == StepPublish {
			assert.False(t, r.Has(name), "skipped step must not be registered")
			continue
		}
		assert.True(t, r.Has(name), "missing builtin %s", name)
	}
}

func TestBuiltinKeywordWithMockLLM(t *testing.T) {
	b := NewBuiltins(llm.NewMockClient(), "mock")
	res, err := b.keyword(context.Background(), newState(t, StepKeyword))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDone, res.Status)
	assert.NotEmpty(t, res.Outputs["keywords"])
}

func TestBuiltinContentUsesTitle(t *testing.T) {
	b := NewBuiltins(llm.NewMockClient(), "mock")
	st := newState(t, StepTitle, StepContent)
	setOutput(t, st, StepTitle, map[string]string{"text": "Go in production"})

	res, err := b.content(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDone, res.Status)
	assert.Contains(t, res.Outputs["body"], "Go in production")
}

func TestBuiltinSEOReportsScore(t *testing.T) {
	st := newState(t, StepSEO)
	setOutput(t, st, StepTitle, map[string]string{"text": "Go in production"})
	setOutput(t, st, StepKeyword, map[string][]string{"keywords": {"golang"}})
	setOutput(t, st, StepContent, map[string]string{"body": "Golang services are simple to deploy."})

	res, err := seo(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDone, res.Status)
	// 10 (short body) + 20 (title) + 10 (short title) + 30 (keyword hit)
	assert.Equal(t, 70, res.Extra["seo_score"])
	assert.Contains(t, res.Extra, "meta")
}

func TestBuiltinSEOWithoutContentFails(t *testing.T) {
	res, err := seo(context.Background(), newState(t, StepSEO))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeFailed, res.Status)
}

func TestBuiltinPublishDryRun(t *testing.T) {
	st := newState(t, StepPublish)
	setOutput(t, st, StepContent, map[string]string{"body": "hello"})

	res, err := publishDryRun(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDone, res.Status)
	assert.Equal(t, false, res.Outputs["published"])
}

func TestBuiltinTransientLLMErrorRetries(t *testing.T) {
	b := NewBuiltins(&failingLLM{err: &llm.StatusError{StatusCode: http.StatusTooManyRequests, Message: "slow down"}}, "m")
	res, err := b.idea(context.Background(), newState(t, StepIdea))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeRetry, res.Status)
}

func TestBuiltinPermanentLLMErrorFails(t *testing.T) {
	b := NewBuiltins(&failingLLM{err: &llm.StatusError{StatusCode: http.StatusUnauthorized, Message: "bad key"}}, "m")
	res, err := b.title(context.Background(), newState(t, StepTitle))
	assert.Nil(t, res)
	var statusErr *llm.StatusError
	assert.True(t, errors.As(err, &statusErr))
}

func TestSplitLines(t *testing.T) {
	got := splitLines("1. golang\n- services\n\n* deploy\n4) extra", 3)
	assert.Equal(t, []string{"golang", "services", "deploy"}, got)
}
