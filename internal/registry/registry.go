// Package registry maps each toolkit type to its answer-storage and
// aggregation contract. A Registry is built once at startup and never mutated.
package registry

import (
	"sort"

	"github.com/terra-clan/toolkit-engine/internal/apperr"
	"github.com/terra-clan/toolkit-engine/internal/models"
)

// Registry is the immutable toolkit definition table
type Registry struct {
	definitions map[models.ToolkitType]models.ToolkitDefinition
}

// DefinitionFor returns the definition of a toolkit type.
// Unknown types yield a NotFound error.
func (r *Registry) DefinitionFor(t models.ToolkitType) (models.ToolkitDefinition, error) {
	def, ok := r.definitions[t]
	if !ok {
		return models.ToolkitDefinition{}, apperr.NotFound("toolkit_type_not_found", "toolkit type %q is not registered", t)
	}
	return clone(def), nil
}

// Require returns the definition of t only if it supports capability c.
// A known type lacking the capability yields UnsupportedOperation.
func (r *Registry) Require(t models.ToolkitType, c models.Capability) (models.ToolkitDefinition, error) {
	def, err := r.DefinitionFor(t)
	if err != nil {
		return models.ToolkitDefinition{}, err
	}
	if !def.Supports(c) {
		return models.ToolkitDefinition{}, apperr.Unsupported(
			"toolkit_"+string(c)+"_unsupported",
			"toolkit type %s does not support %s", t, c,
		)
	}
	return def, nil
}

// Types lists every registered toolkit type in a stable order
func (r *Registry) Types() []models.ToolkitType {
	types := make([]models.ToolkitType, 0, len(r.definitions))
	for t := range r.definitions {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func clone(def models.ToolkitDefinition) models.ToolkitDefinition {
	out := def
	if def.Options != nil {
		opts := *def.Options
		out.Options = &opts
	}
	if def.Graph != nil {
		g := *def.Graph
		out.Graph = &g
	}
	if def.Averages != nil {
		out.Averages = append([]models.AverageSpec(nil), def.Averages...)
	}
	return out
}
