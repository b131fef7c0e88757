package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/xeipuuv/gojsonschema"

	"github.com/opensec-sim/irsim/src/scenario"
)

// seedShapeSchema is a loose structural check run before the
// referential-integrity pass: it catches a seed file that is missing
// whole sections outright, with a much friendlier error than a JSON
// decode failure deep in scenario.Load.
const seedShapeSchema = `{
  "type": "object",
  "required": ["scenario_id", "patient_zero_host", "compromised_user", "attacker_domain", "data_target", "entities", "seed_artifacts", "attack_plan"],
  "properties": {
    "entities": {
      "type": "object",
      "required": ["hosts", "users", "domains", "data_targets"]
    },
    "seed_artifacts": {
      "type": "object",
      "required": ["emails", "log_templates"]
    }
  }
}`

// NewValidateSeedCommand builds the "validate-seed" subcommand: shape
// checks each seed file against seedShapeSchema, then checks referential
// integrity with scenario.ValidateReferential. With no file arguments it
// validates every *.json file under data/seeds excluding ground-truth
// companions, mirroring the reference script's default glob.
func NewValidateSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-seed [files...]",
		Short: "Validate seed files for referential integrity",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := resolveSeedPaths(args)
			if err != nil {
				return err
			}

			bar := progressbar.Default(int64(len(paths)), "validating seeds")
			totalErrors := 0
			for _, path := range paths {
				errs, err := validateOneSeed(path)
				if err != nil {
					return fmt.Errorf("validate-seed: %s: %w", path, err)
				}
				if len(errs) == 0 {
					color.Green("OK: %s", path)
				} else {
					color.Red("FAIL: %s", path)
					for _, e := range errs {
						color.Red("  - %s", e)
					}
				}
				totalErrors += len(errs)
				_ = bar.Add(1)
			}

			if totalErrors > 0 {
				return fmt.Errorf("validate-seed: validation failed with %d error(s)", totalErrors)
			}
			return nil
		},
	}
}

func resolveSeedPaths(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	matches, err := filepath.Glob("data/seeds/*.json")
	if err != nil {
		return nil, fmt.Errorf("glob data/seeds: %w", err)
	}
	var paths []string
	for _, m := range matches {
		if !strings.Contains(filepath.Base(m), "ground_truth") {
			paths = append(paths, m)
		}
	}
	return paths, nil
}

func validateOneSeed(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	schemaLoader := gojsonschema.NewStringLoader(seedShapeSchema)
	docLoader := gojsonschema.NewBytesLoader(raw)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return nil, fmt.Errorf("schema validate: %w", err)
	}
	if !result.Valid() {
		var errs []string
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return errs, nil
	}

	seed, err := scenario.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	return scenario.ValidateReferential(seed), nil
}
