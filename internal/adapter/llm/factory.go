package llm

import (
	"os"
	"strings"
	"time"

	"github.com/xiaot623/gogo/contentflow/internal/logging"
)

const (
	// EnvMode selects the client implementation.
	EnvMode = "CONTENTFLOW_MODE"
	// ModeMock makes every step answer from the mock client, for demos and tests.
	ModeMock = "MOCK"
)

// NewLLMClient returns the mock client when CONTENTFLOW_MODE=MOCK or no
// endpoint is configured, and an HTTP client otherwise.
func NewLLMClient(baseURL, apiKey string, timeout time.Duration) LLMClient {
	switch {
	case strings.EqualFold(os.Getenv(EnvMode), ModeMock):
		logging.Info("llm mock mode enabled", "env", EnvMode)
		return NewMockClient()
	case strings.TrimSpace(baseURL) == "":
		logging.Warn("no llm endpoint configured, using mock client")
		return NewMockClient()
	}
	return NewClient(baseURL, apiKey, timeout)
}
