// Package cmd wires the simulator's cobra subcommands: serve runs the
// episode HTTP control plane, validate-seed checks seed files for
// referential integrity before they're used.
package cmd

import (
	"context"
	"fmt"

	goredis "github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"

	"github.com/opensec-sim/irsim/src/api"
	"github.com/opensec-sim/irsim/src/attacker"
	"github.com/opensec-sim/irsim/src/attacker/rediscache"
	"github.com/opensec-sim/irsim/src/attacker/sqlitecache"
	"github.com/opensec-sim/irsim/src/config"
	"github.com/opensec-sim/irsim/src/episode"
)

// openReplayCache picks the Redis backend when
// OPENSEC_REPLAY_CACHE_REDIS_URL is set, falling back to the default
// SQLite file cache otherwise.
func openReplayCache() (attacker.ReplayCache, error) {
	if redisURL := attacker.ResolveReplayCacheRedisURL(); redisURL != "" {
		opts, err := goredis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return rediscache.New(goredis.NewClient(opts)), nil
	}
	return sqlitecache.Open(attacker.ResolveReplayCachePath())
}

// NewServeCommand builds the "serve" subcommand: resolves configuration,
// wires the attacker's replay cache and policy, and blocks serving HTTP
// until interrupted.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the incident-response episode server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			replayMode := attacker.ResolveReplayMode()
			strict := attacker.ResolveStrict()

			var cache attacker.ReplayCache
			if replayMode != attacker.ReplayOff {
				c, err := openReplayCache()
				if err != nil {
					return fmt.Errorf("serve: open replay cache: %w", err)
				}
				cache = c
			}

			policy, err := attacker.ResolvePolicy(strict)
			if err != nil {
				return fmt.Errorf("serve: resolve attacker policy: %w", err)
			}
			openaiCfg := attacker.ResolveOpenAIConfig()
			temperature := 0.4
			if openaiCfg.Temperature != nil {
				temperature = *openaiCfg.Temperature
			}
			manager := attacker.NewPolicyManager(cache, replayMode, openaiCfg.Model, temperature)

			controller := episode.NewController(episode.Config{
				SeedPath:       cfg.SeedPath,
				EvidenceDir:    cfg.EvidenceDir,
				MaxSteps:       cfg.MaxSteps,
				MaskInjections: cfg.MaskInjections,
				AttackerStrict: strict,
			}, policy, manager)

			if _, err := controller.Reset(context.Background()); err != nil {
				return fmt.Errorf("serve: initial reset: %w", err)
			}

			server := api.NewServer(cfg.ListenAddr, controller)
			return server.Start()
		},
	}
}
