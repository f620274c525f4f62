package router

import (
	"strings"

	"github.com/zen-systems/switchyard/pkg/task"
)

// ModelRegistry classifies model ids as local or cloud.
// *config.ModelCatalog satisfies it.
type ModelRegistry interface {
	IsLocal(modelID string) bool
}

// MarkerRegistry treats a model as local when its id contains any marker.
type MarkerRegistry struct {
	Markers []string
}

// IsLocal implements ModelRegistry.
func (m MarkerRegistry) IsLocal(modelID string) bool {
	id := strings.ToLower(modelID)
	for _, marker := range m.Markers {
		if marker != "" && strings.Contains(id, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

// HintSource supplies learned preferences from the feedback loop.
type HintSource interface {
	// PreferredLocalModel returns the historically best local model for t.
	PreferredLocalModel(t task.Type) (string, bool)
}
