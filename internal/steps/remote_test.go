package steps

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/contentflow/internal/adapter/agentclient"
	"github.com/xiaot623/gogo/contentflow/internal/domain"
)

func sseServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			http.Error(w, body, status)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteExecutorCollectsTrace(t *testing.T) {
	srv := sseServer(t, http.StatusOK,
		"event: message\ndata: {\"text\":\"uploading\"}\n\n"+
			"event: result\ndata: {\"status\":\"done\",\"outputs\":{\"url\":\"https://blog/x\"},\"messages\":[\"published\"]}\n\n")

	exec := NewRemote(agentclient.NewClient(time.Second), StepPublish, srv.URL)
	res, err := exec.Execute(context.Background(), domain.NewRunState("run_1", "ctx", []string{StepPublish}, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDone, res.Status)
	assert.Equal(t, []string{"uploading", "published"}, res.Messages)
	assert.Equal(t, "https://blog/x", res.Outputs["url"])
}

func TestRemoteExecutorErrorEvent(t *testing.T) {
	srv := sseServer(t, http.StatusOK, "event: error\ndata: {\"code\":\"auth\",\"message\":\"denied\"}\n\n")

	exec := NewRemote(agentclient.NewClient(time.Second), StepPublish, srv.URL)
	_, err := exec.Execute(context.Background(), domain.NewRunState("run_1", "ctx", []string{StepPublish}, time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied")
}

func TestRemoteExecutorMissingResult(t *testing.T) {
	srv := sseServer(t, http.StatusOK, "event: message\ndata: {\"text\":\"hi\"}\n\n")

	exec := NewRemote(agentclient.NewClient(time.Second), StepPublish, srv.URL)
	_, err := exec.Execute(context.Background(), domain.NewRunState("run_1", "ctx", []string{StepPublish}, time.Now()))
	require.Error(t, err)
}

func TestRemoteExecutorUnavailableRetries(t *testing.T) {
	srv := sseServer(t, http.StatusBadGateway, "down")

	exec := NewRemote(agentclient.NewClient(time.Second), StepPublish, srv.URL)
	res, err := exec.Execute(context.Background(), domain.NewRunState("run_1", "ctx", []string{StepPublish}, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeRetry, res.Status)
}

func TestRegisterRemotes(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterRemotes(r, agentclient.NewClient(0), map[string]string{StepPublish: "http://x"}))
	assert.True(t, r.Has(StepPublish))
}
