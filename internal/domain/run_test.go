package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewRunStateCopiesSequence(t *testing.T) {
	seq := []string{"keyword", "title"}
	st := NewRunState("run_1", "ctx", seq, time.Unix(0, 0))
	seq[0] = "publish"

	if st.Sequence[0] != "keyword" {
		t.Fatalf("sequence aliased caller slice: %v", st.Sequence)
	}
	if st.Terminal() {
		t.Fatalf("fresh state must not be terminal")
	}
	if st.CurrentStep() != "keyword" {
		t.Fatalf("expected keyword, got %q", st.CurrentStep())
	}
}

func TestEmptySequenceIsTerminal(t *testing.T) {
	st := NewRunState("run_1", "ctx", nil, time.Unix(0, 0))
	if !st.Terminal() {
		t.Fatalf("empty sequence must be terminal")
	}
	if st.CurrentStep() != "" {
		t.Fatalf("expected no current step, got %q", st.CurrentStep())
	}
}

func TestCloneIsDeep(t *testing.T) {
	st := NewRunState("run_1", "ctx", []string{"title", "seo"}, time.Unix(0, 0))
	st.StepStatus["title"] = StepStatusDone
	st.RetryCounts["seo"] = 1
	st.Outputs["title"] = json.RawMessage(`{"text":"Go"}`)
	st.NodeData["seo"] = map[string]json.RawMessage{"seo_score": json.RawMessage(`80`)}
	st.Messages = append(st.Messages, "title: done")

	c := st.Clone()
	c.Sequence[0] = "x"
	c.StepStatus["title"] = StepStatusFailed
	c.RetryCounts["seo"] = 2
	c.Outputs["title"][2] = 'X'
	c.NodeData["seo"]["seo_score"] = json.RawMessage(`1`)
	c.Messages[0] = "changed"

	if st.Sequence[0] != "title" {
		t.Fatalf("sequence shared")
	}
	if st.StepStatus["title"] != StepStatusDone {
		t.Fatalf("step status shared")
	}
	if st.RetryCounts["seo"] != 1 {
		t.Fatalf("retry counts shared")
	}
	if string(st.Outputs["title"]) != `{"text":"Go"}` {
		t.Fatalf("outputs shared: %s", st.Outputs["title"])
	}
	if string(st.NodeData["seo"]["seo_score"]) != "80" {
		t.Fatalf("node data shared")
	}
	if st.Messages[0] != "title: done" {
		t.Fatalf("messages shared")
	}
}

func TestCloneNil(t *testing.T) {
	var st *RunState
	if st.Clone() != nil {
		t.Fatalf("expected nil clone")
	}
}

func TestCountsAndResolved(t *testing.T) {
	st := NewRunState("run_1", "ctx", []string{"a", "b", "c"}, time.Unix(0, 0))
	st.StepStatus["a"] = StepStatusDone
	st.StepStatus["b"] = StepStatusFailed
	st.StepStatus["c"] = StepStatusRunning

	done, failed := st.Counts()
	if done != 1 || failed != 1 {
		t.Fatalf("expected 1 done 1 failed, got %d %d", done, failed)
	}
	if !st.Resolved("a") || !st.Resolved("b") || st.Resolved("c") || st.Resolved("d") {
		t.Fatalf("unexpected resolved markers: %v", st.StepStatus)
	}
}

func TestOutput(t *testing.T) {
	st := NewRunState("run_1", "ctx", []string{"title"}, time.Unix(0, 0))
	var out struct {
		Text string `json:"text"`
	}
	ok, err := st.Output("title", &out)
	if ok || err != nil {
		t.Fatalf("expected no output, got ok=%v err=%v", ok, err)
	}

	st.Outputs["title"] = json.RawMessage(`{"text":"Go"}`)
	ok, err = st.Output("title", &out)
	if !ok || err != nil || out.Text != "Go" {
		t.Fatalf("unexpected decode: ok=%v err=%v out=%+v", ok, err, out)
	}

	st.Outputs["title"] = json.RawMessage(`not json`)
	if _, err := st.Output("title", &out); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestOutcomeValid(t *testing.T) {
	for _, o := range []Outcome{OutcomeDone, OutcomeFailed, OutcomeRetry} {
		if !o.Valid() {
			t.Fatalf("%s should be valid", o)
		}
	}
	if Outcome("skipped").Valid() {
		t.Fatalf("unknown outcome must be invalid")
	}
}

func TestCloneCopiesFinalizedAt(t *testing.T) {
	st := NewRunState("run_1", "ctx", nil, time.Unix(0, 0))
	if st.Finalized() {
		t.Fatalf("fresh state must not be finalized")
	}
	at := time.Unix(10, 0)
	st.FinalizedAt = &at

	c := st.Clone()
	if !c.Finalized() || c.FinalizedAt == st.FinalizedAt {
		t.Fatalf("expected an independent finalized timestamp")
	}
	*c.FinalizedAt = time.Unix(20, 0)
	if !st.FinalizedAt.Equal(time.Unix(10, 0)) {
		t.Fatalf("finalized timestamp shared")
	}
}
