package attacker

import (
	"os"
	"strconv"
	"strings"
)

// ResolveReplayMode reads OPENSEC_REPLAY_MODE (falling back to "record"
// when only OPENSEC_REPLAY_CACHE_PATH is set, and "off" otherwise).
func ResolveReplayMode() ReplayMode {
	mode := strings.ToLower(strings.TrimSpace(os.Getenv("OPENSEC_REPLAY_MODE")))
	switch ReplayMode(mode) {
	case ReplayOff, ReplayRecord, ReplayReplay:
		return ReplayMode(mode)
	}
	if os.Getenv("OPENSEC_REPLAY_CACHE_PATH") != "" {
		return ReplayRecord
	}
	return ReplayOff
}

// ResolveStrict reads OPENSEC_ATTACKER_STRICT.
func ResolveStrict() bool {
	return os.Getenv("OPENSEC_ATTACKER_STRICT") == "1"
}

// ResolveReplayCachePath reads OPENSEC_REPLAY_CACHE_PATH, defaulting to
// a file under the process's working directory.
func ResolveReplayCachePath() string {
	if path := os.Getenv("OPENSEC_REPLAY_CACHE_PATH"); path != "" {
		return path
	}
	return "./data/replay_cache.db"
}

// ResolveReplayCacheRedisURL reads OPENSEC_REPLAY_CACHE_REDIS_URL. A
// non-empty result selects the Redis-backed replay cache over the
// default SQLite one.
func ResolveReplayCacheRedisURL() string {
	return os.Getenv("OPENSEC_REPLAY_CACHE_REDIS_URL")
}

// OpenAIConfig is the resolved configuration for an OpenAI-backed
// RemotePolicy.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	Temperature *float64
}

// ResolveOpenAIConfig reads OPENAI_API_KEY / OPENAI_ATTACKER_MODEL /
// OPENAI_ATTACKER_TEMPERATURE, defaulting the model to "gpt-5" and the
// temperature to 0.4. A temperature of the literal string "null" omits
// Temperature, letting the provider pick its own default.
func ResolveOpenAIConfig() OpenAIConfig {
	model := os.Getenv("OPENAI_ATTACKER_MODEL")
	if model == "" {
		model = "gpt-5"
	}
	tempRaw := os.Getenv("OPENAI_ATTACKER_TEMPERATURE")
	if tempRaw == "" {
		tempRaw = "0.4"
	}
	var temperature *float64
	if tempRaw != "null" {
		if v, err := strconv.ParseFloat(tempRaw, 64); err == nil {
			temperature = &v
		} else {
			v := 0.4
			temperature = &v
		}
	}
	return OpenAIConfig{
		APIKey:      os.Getenv("OPENAI_API_KEY"),
		Model:       model,
		Temperature: temperature,
	}
}

// ResolvePolicy picks a Policy backend from the environment: a local
// OpenAI-compatible server when LOCAL_ATTACKER_BASE_URL is set, a hosted
// OpenAI model when an API key is present, otherwise MockPolicy. strict
// controls whether an unavailable remote backend is a hard error.
func ResolvePolicy(strict bool) (Policy, error) {
	if base := os.Getenv("LOCAL_ATTACKER_BASE_URL"); base != "" {
		model := os.Getenv("OPENAI_ATTACKER_MODEL")
		if model == "" {
			model = "Qwen/Qwen3-1.7B"
		}
		temp := 0.3
		if v, err := strconv.ParseFloat(os.Getenv("OPENSEC_ATTACKER_TEMP"), 64); err == nil {
			temp = v
		}
		return NewLocalPolicy(base, model, &temp), nil
	}

	cfg := ResolveOpenAIConfig()
	if cfg.APIKey != "" {
		return NewRemotePolicy(cfg.APIKey, cfg.Model, cfg.Temperature, strict), nil
	}

	if strict {
		return nil, &StrictError{Reason: "attacker_policy_unavailable"}
	}
	return MockPolicy{}, nil
}
