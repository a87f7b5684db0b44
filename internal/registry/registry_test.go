package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/toolkit-engine/internal/apperr"
	"github.com/terra-clan/toolkit-engine/internal/models"
)

func TestLoadDefault_EveryTypeDefined(t *testing.T) {
	reg, err := LoadDefault()
	require.NoError(t, err)

	assert.Len(t, reg.Types(), len(models.AllToolkitTypes))
	for _, tt := range models.AllToolkitTypes {
		def, err := reg.DefinitionFor(tt)
		require.NoError(t, err, "type %s", tt)
		assert.Equal(t, tt, def.Type)
		assert.NotEmpty(t, def.AnswerTable)
	}
}

// Every declared capability must carry the fields its operation reads
func TestLoadDefault_CapabilitiesComplete(t *testing.T) {
	reg, err := LoadDefault()
	require.NoError(t, err)

	for _, tt := range models.AllToolkitTypes {
		def, err := reg.DefinitionFor(tt)
		require.NoError(t, err)

		if def.Graph != nil {
			switch def.Graph.Shape {
			case models.GraphRange:
				assert.NotEmpty(t, def.Graph.RangeMinField, "%s range min", tt)
				assert.NotEmpty(t, def.Graph.RangeMaxField, "%s range max", tt)
			default:
				assert.NotEmpty(t, def.ValueField, "%s value field", tt)
			}
		}
		for _, avg := range def.Averages {
			assert.NotEmpty(t, avg.Field, "%s average %s", tt, avg.Name)
		}
		if def.Options != nil {
			assert.NotEmpty(t, def.Options.Table)
			assert.NotEmpty(t, def.Options.SelectedTable)
		}

		answer, err := models.NewAnswer(tt)
		require.NoError(t, err)
		assert.Equal(t, tt, answer.ToolkitType())
	}
}

func TestRequire_UnsupportedVersusNotFound(t *testing.T) {
	reg, err := LoadDefault()
	require.NoError(t, err)

	_, err = reg.Require(models.ToolkitMood, models.CapabilityGraph)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrUnsupportedOperation))
	assert.Equal(t, "toolkit_graph_unsupported", apperr.CodeOf(err))

	_, err = reg.Require(models.ToolkitType("PAINTING"), models.CapabilityGraph)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Equal(t, "toolkit_type_not_found", apperr.CodeOf(err))

	def, err := reg.Require(models.ToolkitSteps, models.CapabilityGraph)
	require.NoError(t, err)
	assert.Equal(t, models.GraphBar, def.Graph.Shape)
}

func TestDefinitionFor_ReturnsCopy(t *testing.T) {
	reg, err := LoadDefault()
	require.NoError(t, err)

	def, err := reg.DefinitionFor(models.ToolkitSteps)
	require.NoError(t, err)
	def.Graph.Shape = models.GraphScattered
	def.Averages[0].Field = "hacked"

	again, err := reg.DefinitionFor(models.ToolkitSteps)
	require.NoError(t, err)
	assert.Equal(t, models.GraphBar, again.Graph.Shape)
	assert.Equal(t, "steps", again.Averages[0].Field)
}

func TestLoad_RejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"malformed yaml", "toolkits: [:"},
		{"missing types", "toolkits:\n  - type: STEPS\n    answer_table: steps_answers\n"},
		{"unknown type", "toolkits:\n  - type: PAINTING\n    answer_table: painting\n"},
		{"bad identifier", "toolkits:\n  - type: STEPS\n    answer_table: \"steps; DROP TABLE x\"\n"},
		{"range without fields", "toolkits:\n  - type: STEPS\n    answer_table: s\n    graph:\n      shape: RANGE\n      aggregate: AVG\n"},
		{"bar without value", "toolkits:\n  - type: STEPS\n    answer_table: s\n    graph:\n      shape: BAR\n      aggregate: SUM\n"},
		{"bad aggregate", "toolkits:\n  - type: STEPS\n    answer_table: s\n    value_field: v\n    graph:\n      shape: BAR\n      aggregate: MEDIAN\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrInvalidConfiguration))
		})
	}
}

func TestLoadFile_EmptyPathUsesEmbedded(t *testing.T) {
	reg, err := LoadFile("")
	require.NoError(t, err)
	assert.NotEmpty(t, reg.Types())

	_, err = LoadFile("/nonexistent/toolkits.yaml")
	assert.Error(t, err)
}
