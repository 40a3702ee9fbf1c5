package steps

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/xiaot623/gogo/contentflow/internal/domain"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	err := r.Register("title", ExecutorFunc(func(ctx context.Context, st *domain.RunState) (*domain.StepResult, error) {
		return domain.Done(map[string]interface{}{"text": st.Context}), nil
	}))
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	st := domain.NewRunState("run_1", "hello", []string{"title"}, time.Now())
	exec, ok := r.Lookup("title")
	if !ok {
		t.Fatalf("expected title to be registered")
	}
	res, err := exec.Execute(context.Background(), st)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Status != domain.OutcomeDone || res.Outputs["text"] != "hello" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRegistryRejectsInvalid(t *testing.T) {
	r := NewRegistry()
	noop := ExecutorFunc(func(context.Context, *domain.RunState) (*domain.StepResult, error) { return nil, nil })

	if err := r.Register("", noop); err == nil {
		t.Fatalf("expected error for empty name")
	}
	if err := r.Register("seo", nil); err == nil {
		t.Fatalf("expected error for nil executor")
	}
	r.MustRegister("seo", noop)
	if err := r.Register("seo", noop); err == nil {
		t.Fatalf("expected error for duplicate registration")
	}
}

func TestRegistryMissingExecutor(t *testing.T) {
	r := NewRegistry()
	if r.Has("publish") {
		t.Fatalf("expected publish to be missing")
	}
	if exec, ok := r.Lookup("publish"); ok || exec != nil {
		t.Fatalf("expected no executor for publish")
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry()
	noop := ExecutorFunc(func(context.Context, *domain.RunState) (*domain.StepResult, error) { return nil, nil })
	r.MustRegister("title", noop)
	r.MustRegister("content", noop)
	r.MustRegister("seo", noop)

	want := []string{"content", "seo", "title"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
}
