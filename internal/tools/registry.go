package tools

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/daisinet/securetools/internal/service"
)

// Registry maps tool ids to their executors and adapts them to the single
// executor hook the broker calls. Registration happens at wiring time; the
// lock only guards against late registration during tests.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]service.ToolExecutor
	fallback service.ToolExecutor
	logger   *zap.Logger
}

// NewRegistry creates an empty registry. fallback, when non-nil, handles
// tool ids with no dedicated executor.
func NewRegistry(fallback service.ToolExecutor, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.L()
	}
	return &Registry{
		tools:    make(map[string]service.ToolExecutor),
		fallback: fallback,
		logger:   logger,
	}
}

// Register binds an executor to a tool id, replacing any previous binding.
func (r *Registry) Register(toolID string, exec service.ToolExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[toolID] = exec
}

// Executor returns the dispatch function handed to the broker.
func (r *Registry) Executor() service.ToolExecutor {
	return func(ctx context.Context, installID, toolID string, params []service.ParameterValue, setup map[string]string) (*service.ExecuteResult, error) {
		r.mu.RLock()
		exec, ok := r.tools[toolID]
		r.mu.RUnlock()
		if !ok {
			if r.fallback == nil {
				return nil, fmt.Errorf("no executor registered for tool %q", toolID)
			}
			r.logger.Debug("using fallback executor", zap.String("tool_id", toolID))
			exec = r.fallback
		}
		return exec(ctx, installID, toolID, params, setup)
	}
}
