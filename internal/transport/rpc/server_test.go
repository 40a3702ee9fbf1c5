package rpc

import (
	"context"
	"net"
	"net/rpc/jsonrpc"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/contentflow/internal/domain"
	"github.com/xiaot623/gogo/contentflow/internal/planner"
	"github.com/xiaot623/gogo/contentflow/internal/service"
	"github.com/xiaot623/gogo/contentflow/internal/steps"
	"github.com/xiaot623/gogo/contentflow/policy"
	"github.com/xiaot623/gogo/contentflow/tests/helpers"
)

func newTestService(t *testing.T) *service.Service {
	t.Helper()
	engine, err := policy.NewEngine(context.Background(), policy.DefaultOptions())
	require.NoError(t, err)

	seq := []string{"keyword", "title"}
	reg := steps.NewRegistry()
	for _, name := range seq {
		reg.MustRegister(name, steps.ExecutorFunc(func(context.Context, *domain.RunState) (*domain.StepResult, error) {
			return domain.Done(map[string]interface{}{"ok": true}), nil
		}))
	}
	cls := planner.ClassifierFunc(func(context.Context, string) ([]string, error) { return seq, nil })
	return service.New(helpers.NewTestSQLiteStore(t), planner.New(cls, reg.Has), engine, reg, nil, nil)
}

func TestPipelineRPC(t *testing.T) {
	svc := newTestService(t)
	srv, err := NewServer(svc)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()
	t.Cleanup(func() {
		_ = ln.Close()
		<-served
	})

	client, err := jsonrpc.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	var status domain.SupervisorStatus
	require.NoError(t, client.Call("Pipeline.Status", &Empty{}, &status))
	assert.Equal(t, domain.SupervisorIdle, status.State)

	var started domain.StartRunResponse
	err = client.Call("Pipeline.Start", &domain.StartRunRequest{Context: ""}, &started)
	assert.Error(t, err)

	require.NoError(t, client.Call("Pipeline.Start", &domain.StartRunRequest{Context: "go tips"}, &started))
	assert.True(t, started.Started)
	assert.NotEmpty(t, started.RunID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Wait(ctx))

	var stop domain.StopResponse
	require.NoError(t, client.Call("Pipeline.Stop", &Empty{}, &stop))
	assert.False(t, stop.Stopped)

	var resumed domain.StartRunResponse
	err = client.Call("Pipeline.Resume", &ResumeArgs{}, &resumed)
	assert.Error(t, err)

	err = client.Call("Pipeline.Resume", &ResumeArgs{CheckpointID: "cp_missing"}, &resumed)
	assert.Error(t, err)

	require.NoError(t, client.Call("Pipeline.Resume", &ResumeArgs{RunID: started.RunID, BeforeStep: "title"}, &resumed))
	assert.True(t, resumed.Started)
	assert.Equal(t, started.RunID, resumed.RunID)
	require.NoError(t, svc.Wait(ctx))
}

func TestShutdownWithoutListener(t *testing.T) {
	srv, err := NewServer(newTestService(t))
	require.NoError(t, err)
	assert.NoError(t, srv.Shutdown(context.Background()))
}
