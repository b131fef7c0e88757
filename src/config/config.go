// Package config resolves the simulator's process-level runtime
// configuration (where the seed lives, how long an episode runs, what
// the HTTP surface listens on) from the process environment, a .env
// file, and built-in defaults, in that decreasing order of precedence.
//
// Attacker-backend selection (policy, replay mode, OpenAI credentials)
// is deliberately out of scope here: src/attacker.Resolve* reads those
// directly under their original env var names so a replay cache
// recorded against one deployment stays meaningful against another
// that wires this package differently.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the fully resolved configuration one irsim-serve process
// runs with.
type Config struct {
	SeedPath       string `mapstructure:"seed_path"`
	EvidenceDir    string `mapstructure:"evidence_store_dir"`
	MaxSteps       int    `mapstructure:"max_steps"`
	MaskInjections bool   `mapstructure:"mask_injections"`
	ListenAddr     string `mapstructure:"listen_addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("seed_path", "seeds/sample_seed.json")
	v.SetDefault("evidence_store_dir", "./data")
	v.SetDefault("max_steps", 20)
	v.SetDefault("mask_injections", false)
	v.SetDefault("listen_addr", ":8080")
}

// Load reads a .env file (if present, without overriding variables
// already set in the process environment), then resolves Config from
// the environment via viper, falling back to the defaults above.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("IRSIM")
	v.AutomaticEnv()
	for _, key := range []string{
		"seed_path", "evidence_store_dir", "max_steps", "mask_injections", "listen_addr",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("config: bind env %q: %w", key, err)
		}
	}

	cfg := &Config{
		SeedPath:       v.GetString("seed_path"),
		EvidenceDir:    v.GetString("evidence_store_dir"),
		MaxSteps:       v.GetInt("max_steps"),
		MaskInjections: v.GetBool("mask_injections"),
		ListenAddr:     v.GetString("listen_addr"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.SeedPath == "" {
		return fmt.Errorf("config: seed_path must not be empty")
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("config: max_steps must be positive, got %d", c.MaxSteps)
	}
	return nil
}
