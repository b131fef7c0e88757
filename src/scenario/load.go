package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Load reads and decodes a seed file, validating its required top-level
// fields are present.
func Load(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	if err := validate.Struct(&seed); err != nil {
		return nil, fmt.Errorf("validate seed: %w", err)
	}
	return &seed, nil
}

// GroundTruthPath derives the companion ground-truth file path from a
// seed path, following the original naming convention: a seed named
// "*_seed.json" or "*seed.json" has its ground truth at the equivalent
// "*_ground_truth.json"/"*ground_truth.json"; anything else falls back to
// a sibling "sample_ground_truth.json".
func GroundTruthPath(seedPath string) string {
	dir := seedPath[:strings.LastIndexByte(seedPath, '/')+1]
	name := seedPath[len(dir):]
	switch {
	case strings.HasSuffix(name, "_seed.json"):
		return dir + strings.TrimSuffix(name, "_seed.json") + "_ground_truth.json"
	case strings.HasSuffix(name, "seed.json"):
		return dir + strings.TrimSuffix(name, "seed.json") + "ground_truth.json"
	default:
		return dir + "sample_ground_truth.json"
	}
}

// LoadGroundTruth reads and decodes a ground-truth file. A missing file
// is not an error — not every seed ships one — and returns (nil, nil).
func LoadGroundTruth(path string) (*GroundTruth, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ground truth: %w", err)
	}
	var gt GroundTruth
	if err := json.Unmarshal(data, &gt); err != nil {
		return nil, fmt.Errorf("decode ground truth: %w", err)
	}
	return &gt, nil
}
