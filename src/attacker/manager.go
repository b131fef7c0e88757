package attacker

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/opensec-sim/irsim/src/jsonutil"
	"github.com/opensec-sim/irsim/src/scenario"
)

// PolicyManager wraps a Policy with replay-cache lookups/writes and
// de-duplicates concurrent decide() calls sharing the same cache key,
// so two episode workers racing on an identical (scenario, step, state,
// action, context) tuple issue one policy call, not two.
type PolicyManager struct {
	Cache       ReplayCache
	ReplayMode  ReplayMode
	Model       string
	Temperature float64

	group singleflight.Group
}

// NewPolicyManager builds a PolicyManager. cache may be nil, in which
// case mode is treated as ReplayOff regardless of its argument.
func NewPolicyManager(cache ReplayCache, mode ReplayMode, model string, temperature float64) *PolicyManager {
	return &PolicyManager{Cache: cache, ReplayMode: mode, Model: model, Temperature: temperature}
}

// Decide resolves the attacker's action for one step: a replay hit short
// circuits the policy entirely; otherwise the policy is consulted, its
// answer validated against the scenario's allowed-action vocabulary (an
// invalid answer degrades to no_op unless strict is set, in which case
// it returns an error), and — in record or replay mode — the result is
// written back to the cache under the same key a later replay run will
// look up.
func (m *PolicyManager) Decide(
	ctx context.Context,
	scenarioID string,
	step int,
	attackerState string,
	agentAction map[string]any,
	policy Policy,
	seed *scenario.Seed,
	attackerContext map[string]any,
	strict bool,
) (Decision, error) {
	agentActionHash, err := jsonutil.HashAgentAction(agentAction)
	if err != nil {
		return Decision{}, fmt.Errorf("attacker: hash agent action: %w", err)
	}
	var contextArg any
	if len(attackerContext) > 0 {
		contextArg = attackerContext
	}
	attackerContextHash, err := jsonutil.HashAttackerContext(contextArg)
	if err != nil {
		return Decision{}, fmt.Errorf("attacker: hash attacker context: %w", err)
	}

	cacheKey := fmt.Sprintf("%s|%d|%s|%s|%s", scenarioID, step, attackerState, agentActionHash, attackerContextHash)

	if m.Cache != nil && m.ReplayMode == ReplayReplay {
		if cached, ok, err := m.Cache.Get(scenarioID, step, attackerState, agentActionHash, attackerContextHash); err != nil {
			return Decision{}, fmt.Errorf("attacker: replay cache lookup: %w", err)
		} else if ok {
			return decisionFromJSON(cached), nil
		}
	}

	result, err, _ := m.group.Do(cacheKey, func() (any, error) {
		decision, err := policy.ChooseAction(ctx, seed, attackerState, agentAction, attackerContext)
		if err != nil {
			return nil, err
		}

		if !IsValidAction(&decision, seed, attackerState) {
			if strict {
				return nil, &StrictError{Reason: "attacker_invalid_action"}
			}
			decision = NoOpAction
		}

		if m.Cache != nil && (m.ReplayMode == ReplayRecord || m.ReplayMode == ReplayReplay) {
			decisionJSON := decisionAsJSON(decision)
			if err := m.Cache.Set(scenarioID, step, attackerState, agentActionHash, attackerContextHash, decisionJSON, m.Model, m.Temperature); err != nil {
				return nil, fmt.Errorf("attacker: replay cache write: %w", err)
			}
		}
		return decision, nil
	})
	if err != nil {
		return Decision{}, err
	}
	return result.(Decision), nil
}

func decisionAsJSON(d Decision) map[string]any {
	out := map[string]any{
		"action_type": d.ActionType,
		"params":      d.Params,
	}
	if d.Rationale != "" {
		out["rationale"] = d.Rationale
	}
	if len(d.EvidenceIDs) > 0 {
		out["evidence_ids"] = d.EvidenceIDs
	}
	if len(d.PolicyTags) > 0 {
		out["policy_tags"] = d.PolicyTags
	}
	return out
}
