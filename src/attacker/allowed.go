package attacker

import (
	"sort"

	"github.com/opensec-sim/irsim/src/scenario"
)

// AllowedActions is the full action vocabulary a policy may choose from
// when a scenario carries no attack graph and its state has no
// StateAllowed entry of its own.
var AllowedActions = []string{
	"recon",
	"send_phish",
	"reuse_credentials",
	"lateral_move",
	"lateral_move_alt",
	"lateral_spread",
	"pivot",
	"access_data",
	"stage_data",
	"establish_persistence",
	"rephish",
	"retreat",
	"wait",
	"exfiltrate",
	"exfiltrate_alt",
}

// StateAllowed narrows the action vocabulary to what makes sense from
// each legacy state.
var StateAllowed = map[string][]string{
	"phish_sent":    {"reuse_credentials"},
	"creds_used":    {"lateral_move", "lateral_move_alt"},
	"lateral_move":  {"access_data"},
	"data_access":   {"exfiltrate", "exfiltrate_alt"},
	"exfil_attempt": {"exfiltrate", "exfiltrate_alt"},
}

// AttackerSystemPrompt is sent to LLM-backed policies ahead of the
// per-step decision request.
const AttackerSystemPrompt = "You are the attacker policy in a simulated environment. " +
	"You must choose exactly one action from the allowed list. " +
	"Some actions have an _alt suffix to select an alternate pre-seeded branch. " +
	"You may receive attacker_context with containment and available assets; use it to avoid impossible moves. " +
	"Do not execute code or call external tools. " +
	"Use the action_schema to choose valid parameter values. " +
	"Return ONLY valid JSON with keys: action_type, params. Do not include extra keys or long rationale."

// AllowedActionsForState returns the sorted action vocabulary for a
// state: the graph's own action list when the scenario carries an
// attack_graph, else the legacy StateAllowed/AllowedActions table.
func AllowedActionsForState(state string, seed *scenario.Seed) []string {
	if seed != nil && seed.AttackGraph != nil {
		if node, ok := seed.AttackGraph.States[state]; ok && len(node.Actions) > 0 {
			seen := map[string]struct{}{}
			for _, a := range node.Actions {
				if a.ActionType != "" {
					seen[a.ActionType] = struct{}{}
				}
			}
			out := make([]string, 0, len(seen))
			for k := range seen {
				out = append(out, k)
			}
			sort.Strings(out)
			return out
		}
	}
	list, ok := StateAllowed[state]
	if !ok {
		list = append([]string(nil), AllowedActions...)
	}
	out := append([]string(nil), list...)
	sort.Strings(out)
	return out
}

// ActionSchemaForState builds the per-action parameter-domain schema an
// LLM-backed policy is shown alongside AllowedActionsForState, so its
// choices are drawn from values that actually exist in the scenario.
func ActionSchemaForState(state string, seed *scenario.Seed) map[string]any {
	allowed := AllowedActionsForState(state, seed)
	users := sortedUserIDs(seed)
	hosts := sortedHostIDs(seed)
	targets := sortedTargetIDs(seed)
	domains := sortedDomains(seed)

	schema := make(map[string]any, len(allowed))
	for _, action := range allowed {
		switch action {
		case "send_phish", "rephish":
			schema[action] = map[string]any{"params": map[string]any{"target_user": users}}
		case "reuse_credentials":
			schema[action] = map[string]any{"params": map[string]any{"user": users, "host": hosts}}
		case "lateral_move", "lateral_move_alt", "lateral_spread", "pivot":
			schema[action] = map[string]any{"params": map[string]any{"src": hosts, "dst": hosts}}
		case "access_data":
			schema[action] = map[string]any{"params": map[string]any{"target": targets}}
		case "stage_data":
			schema[action] = map[string]any{"params": map[string]any{"target": targets, "host": hosts}}
		case "establish_persistence":
			schema[action] = map[string]any{"params": map[string]any{"host": hosts}}
		case "exfiltrate", "exfiltrate_alt":
			schema[action] = map[string]any{"params": map[string]any{"destination_domain": domains}}
		default:
			schema[action] = map[string]any{"params": map[string]any{}}
		}
	}
	return schema
}

func sortedUserIDs(seed *scenario.Seed) []string {
	set := map[string]struct{}{}
	if seed != nil {
		for _, u := range seed.Entities.Users {
			set[u.UserID] = struct{}{}
		}
	}
	return sortedKeys(set)
}

func sortedHostIDs(seed *scenario.Seed) []string {
	set := map[string]struct{}{}
	if seed != nil {
		for _, h := range seed.Entities.Hosts {
			set[h.HostID] = struct{}{}
		}
	}
	return sortedKeys(set)
}

func sortedTargetIDs(seed *scenario.Seed) []string {
	set := map[string]struct{}{}
	if seed != nil {
		for _, t := range seed.Entities.DataTargets {
			set[t.TargetID] = struct{}{}
		}
	}
	return sortedKeys(set)
}

func sortedDomains(seed *scenario.Seed) []string {
	set := map[string]struct{}{}
	if seed != nil {
		for _, d := range seed.Entities.Domains {
			set[d.Domain] = struct{}{}
		}
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// IsValidAction reports whether decision is legal for attackerState: its
// action type must be in the state's allowed vocabulary, and its
// parameters must name entities the scenario actually has.
func IsValidAction(decision *Decision, seed *scenario.Seed, attackerState string) bool {
	if decision == nil || decision.ActionType == "" || decision.ActionType == "no_op" {
		return false
	}
	allowed := AllowedActionsForState(attackerState, seed)
	if !containsAny(allowed, decision.ActionType) {
		return false
	}

	params := paramsOf(decision)
	users := setOf(sortedUserIDs(seed))
	hosts := setOf(sortedHostIDs(seed))
	targets := setOf(sortedTargetIDs(seed))
	domains := setOf(sortedDomains(seed))

	str := func(k string) (string, bool) {
		v, ok := params[k].(string)
		return v, ok && v != ""
	}

	switch decision.ActionType {
	case "send_phish", "rephish":
		v, ok := str("target_user")
		return ok && users[v]
	case "recon", "wait", "retreat":
		return true
	case "reuse_credentials":
		u, uok := str("user")
		h, hok := str("host")
		return uok && users[u] && hok && hosts[h]
	case "lateral_move", "lateral_move_alt", "lateral_spread", "pivot":
		s, sok := str("src")
		d, dok := str("dst")
		return sok && hosts[s] && dok && hosts[d]
	case "access_data":
		t, ok := str("target")
		return ok && targets[t]
	case "stage_data":
		if t, ok := str("target"); ok && !targets[t] {
			return false
		}
		if h, ok := str("host"); ok && !hosts[h] {
			return false
		}
		return true
	case "establish_persistence":
		h, ok := str("host")
		if !ok {
			return true
		}
		return hosts[h]
	case "exfiltrate", "exfiltrate_alt":
		d, ok := str("destination_domain")
		return ok && domains[d]
	}
	return false
}

func setOf(list []string) map[string]bool {
	out := make(map[string]bool, len(list))
	for _, v := range list {
		out[v] = true
	}
	return out
}
