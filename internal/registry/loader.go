package registry

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/terra-clan/toolkit-engine/internal/apperr"
	"github.com/terra-clan/toolkit-engine/internal/models"
)

//go:embed toolkits.yaml
var defaultDefinitions []byte

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// registryFile is the on-disk shape of toolkits.yaml
type registryFile struct {
	Toolkits []models.ToolkitDefinition `yaml:"toolkits"`
}

// LoadDefault builds the registry from the embedded definitions
func LoadDefault() (*Registry, error) {
	return Load(defaultDefinitions)
}

// LoadFile builds the registry from a YAML file, falling back to the
// embedded definitions when path is empty
func LoadFile(path string) (*Registry, error) {
	if path == "" {
		return LoadDefault()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	return Load(data)
}

// Load parses and validates a registry document
func Load(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, apperr.InvalidConfiguration("registry_invalid", fmt.Errorf("failed to parse YAML: %w", err))
	}

	defs := make(map[models.ToolkitType]models.ToolkitDefinition, len(file.Toolkits))
	var errs []error

	for _, def := range file.Toolkits {
		if !def.Type.IsValid() {
			errs = append(errs, fmt.Errorf("unknown toolkit type %q", def.Type))
			continue
		}
		if _, dup := defs[def.Type]; dup {
			errs = append(errs, fmt.Errorf("%s: defined twice", def.Type))
			continue
		}
		if err := validateDefinition(def); err != nil {
			errs = append(errs, err)
			continue
		}
		defs[def.Type] = def
	}

	for _, t := range models.AllToolkitTypes {
		if _, ok := defs[t]; !ok {
			errs = append(errs, fmt.Errorf("%s: missing definition", t))
		}
	}

	if len(errs) > 0 {
		return nil, apperr.InvalidConfiguration("registry_invalid", errors.Join(errs...))
	}

	slog.Info("toolkit registry loaded", "count", len(defs))

	return &Registry{definitions: defs}, nil
}

// validateDefinition checks that every capability a definition declares is complete
func validateDefinition(def models.ToolkitDefinition) error {
	var errs []error

	ident := func(field, value string, required bool) {
		if value == "" {
			if required {
				errs = append(errs, fmt.Errorf("%s: %s is required", def.Type, field))
			}
			return
		}
		if !identifierPattern.MatchString(value) {
			errs = append(errs, fmt.Errorf("%s: %s %q is not a valid identifier", def.Type, field, value))
		}
	}

	ident("answer_table", def.AnswerTable, true)
	ident("value_field", def.ValueField, false)
	ident("streak_field", def.StreakField, false)

	if def.Options != nil {
		ident("options.table", def.Options.Table, true)
		ident("options.field", def.Options.Field, true)
		ident("options.selected_table", def.Options.SelectedTable, true)
		ident("options.selected_field", def.Options.SelectedField, true)
	}

	if g := def.Graph; g != nil {
		switch g.Shape {
		case models.GraphBar, models.GraphScattered:
			if def.ValueField == "" {
				errs = append(errs, fmt.Errorf("%s: %s graph requires value_field", def.Type, g.Shape))
			}
		case models.GraphRange:
			ident("graph.range_min_field", g.RangeMinField, true)
			ident("graph.range_max_field", g.RangeMaxField, true)
		default:
			errs = append(errs, fmt.Errorf("%s: unknown graph shape %q", def.Type, g.Shape))
		}
		if !validAggregate(g.Aggregate) {
			errs = append(errs, fmt.Errorf("%s: unknown graph aggregate %q", def.Type, g.Aggregate))
		}
	}

	seen := make(map[string]bool, len(def.Averages))
	for _, avg := range def.Averages {
		if avg.Name == "" || seen[avg.Name] {
			errs = append(errs, fmt.Errorf("%s: average names must be unique and non-empty", def.Type))
		}
		seen[avg.Name] = true
		ident("averages.field", avg.Field, true)
		if !validAggregate(avg.Aggregate) {
			errs = append(errs, fmt.Errorf("%s: unknown average aggregate %q", def.Type, avg.Aggregate))
		}
	}

	return errors.Join(errs...)
}

func validAggregate(a models.Aggregate) bool {
	return a == models.AggregateSum || a == models.AggregateAvg
}
