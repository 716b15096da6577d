// Package skills implements the discoverable, LLM-invocable functions the
// chat surface can dispatch — the teacher's MCP tool catalog pattern
// (internal/server/catalog.go), generalized from "MCP tool" to "skill".
package skills

import (
	"context"
	"fmt"
	"sync"

	"github.com/auriga-os/emonk/internal/interfaces"
	"github.com/auriga-os/emonk/internal/models"
)

// Registry is the process-wide name -> skill mapping advertised to the LLM.
type Registry struct {
	mu          sync.RWMutex
	descriptors []models.SkillDescriptor
	handlers    map[string]interfaces.SkillHandler
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]interfaces.SkillHandler)}
}

// Register advertises a skill under name with the given description and
// JSON input schema, and associates it with handler.
func (r *Registry) Register(descriptor models.SkillDescriptor, handler interfaces.SkillHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptors = append(r.descriptors, descriptor)
	r.handlers[descriptor.Name] = handler
}

// Descriptors returns the full skill catalog, in registration order.
func (r *Registry) Descriptors() []models.SkillDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.SkillDescriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// Dispatch invokes the named skill with input, returning its output.
func (r *Registry) Dispatch(ctx context.Context, name, input string) (string, error) {
	r.mu.RLock()
	handler, ok := r.handlers[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("skills: unknown skill %q", name)
	}
	return handler(ctx, input)
}

var _ interfaces.SkillRegistry = (*Registry)(nil)
