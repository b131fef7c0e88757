package attacker

import "github.com/opensec-sim/irsim/src/scenario"

// LegacyStates is the fixed 5-state kill chain used when a scenario
// carries no attack_graph.
var LegacyStates = []string{
	"phish_sent",
	"creds_used",
	"lateral_move",
	"data_access",
	"exfil_attempt",
}

var legacyStateIndex = func() map[string]int {
	idx := make(map[string]int, len(LegacyStates))
	for i, s := range LegacyStates {
		idx[s] = i
	}
	return idx
}()

// ActionStateFallback maps an attacker action type to the legacy state it
// advances to when no attack graph (or no matching graph edge) applies.
var ActionStateFallback = map[string]string{
	"reuse_credentials":  "creds_used",
	"lateral_move":        "lateral_move",
	"lateral_move_alt":    "lateral_move",
	"access_data":         "data_access",
	"exfiltrate":          "exfil_attempt",
	"exfiltrate_alt":      "exfil_attempt",
	"send_phish":          "phish_sent",
}

// Decision is an attacker action chosen by a Policy: either played
// straight from a deterministic table or parsed from an LLM response.
type Decision struct {
	ActionType  string         `json:"action_type"`
	Params      map[string]any `json:"params"`
	Rationale   string         `json:"rationale,omitempty"`
	EvidenceIDs []string       `json:"evidence_ids,omitempty"`
	PolicyTags  []string       `json:"policy_tags,omitempty"`
}

// NoOpAction is substituted whenever a policy produces something invalid
// or the attacker has nothing left to do.
var NoOpAction = Decision{ActionType: "no_op", Params: map[string]any{}}

func (d *Decision) paramString(key string) string {
	if d == nil || d.Params == nil {
		return ""
	}
	v, _ := d.Params[key].(string)
	return v
}

// AdvanceResult is the outcome of one state-machine tick: either the
// attacker's next state (advanced), or the current state held in place
// (stalled) along with the reason.
type AdvanceResult struct {
	NextState     string
	Stalled       bool
	Reason        string
	MatchedAction *scenario.GraphAction
}

func applyActionEffects(ctx *Context, effects map[string]any) {
	if v, ok := effects["has_creds"]; ok {
		ctx.HasCreds = truthy(v)
	}
	if v, ok := effects["has_admin"]; ok {
		ctx.HasAdmin = truthy(v)
	}
	if v, ok := effects["has_stage"]; ok {
		ctx.HasStage = truthy(v)
	}
	if v, ok := effects["has_persistence"]; ok {
		ctx.HasPersistence = truthy(v)
	}

	host := firstString(effects, "compromise_host", "current_host", "set_current_host")
	if host != "" {
		ctx.RecordHost(host)
	}
	user := firstString(effects, "compromise_user", "current_user", "set_current_user")
	if user != "" {
		ctx.RecordUser(user)
	}

	if v, ok := effects["current_target"]; ok {
		ctx.CurrentTarget, _ = v.(string)
	}
	if v, ok := effects["current_exfil_domain"]; ok {
		ctx.CurrentExfilDomain, _ = v.(string)
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	default:
		return v != nil
	}
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// ApplyAttackerAction updates ctx after a non-stalled transition. When a
// matched graph action supplied effects, those are applied directly
// (plus the exfiltration-domain default); otherwise ctx is updated per
// the legacy per-action-type table.
func ApplyAttackerAction(ctx *Context, action *Decision, effects map[string]any) {
	if action == nil {
		return
	}
	if effects != nil {
		applyActionEffects(ctx, effects)
		if (action.ActionType == "exfiltrate" || action.ActionType == "exfiltrate_alt") && ctx.CurrentExfilDomain == "" {
			ctx.CurrentExfilDomain = action.paramString("destination_domain")
		}
		return
	}
	switch action.ActionType {
	case "reuse_credentials":
		ctx.RecordUser(action.paramString("user"))
		ctx.RecordHost(action.paramString("host"))
		ctx.HasCreds = true
	case "lateral_move", "lateral_move_alt":
		ctx.RecordHost(action.paramString("dst"))
		ctx.HasAdmin = true
	case "access_data":
		ctx.CurrentTarget = action.paramString("target")
		ctx.HasStage = true
	case "exfiltrate", "exfiltrate_alt":
		ctx.CurrentExfilDomain = action.paramString("destination_domain")
	case "establish_persistence":
		ctx.HasPersistence = true
	}
}

func requiresSatisfied(requires map[string]any, ctx *Context) bool {
	if len(requires) == 0 {
		return true
	}
	if ctx == nil {
		return false
	}
	for key, expected := range requires {
		var actual any
		switch key {
		case "foothold":
			actual = len(ctx.CompromisedHosts) > 0
		case "has_creds":
			actual = ctx.HasCreds
		case "has_admin":
			actual = ctx.HasAdmin
		case "has_stage":
			actual = ctx.HasStage
		case "has_persistence":
			actual = ctx.HasPersistence
		case "current_host":
			actual = stringOrNil(ctx.CurrentHost)
		case "current_user":
			actual = stringOrNil(ctx.CurrentUser)
		case "current_target":
			actual = stringOrNil(ctx.CurrentTarget)
		default:
			actual = nil
		}
		if !matchesExpected(actual, expected) {
			return false
		}
	}
	return true
}

func stringOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func matchesExpected(actual, expected any) bool {
	switch exp := expected.(type) {
	case []any:
		for _, item := range exp {
			if item == actual {
				return true
			}
		}
		return false
	default:
		return actual == expected
	}
}

func paramsOf(action *Decision) map[string]any {
	if action == nil || action.Params == nil {
		return map[string]any{}
	}
	return action.Params
}

func paramMatches(params map[string]any, matchParams map[string]string) bool {
	for k, v := range matchParams {
		actual, _ := params[k].(string)
		if actual != v {
			return false
		}
	}
	return true
}

// AdvanceState computes the attacker's next state given the current
// state, executed containment, scenario facts, the attacker's chosen
// action, its accumulated context, and the scenario's attack graph (nil
// for the legacy linear fallback).
//
// With no action supplied (the pure-progression legacy mode), the
// attacker simply advances one state per tick unless containment has
// already cut off its domain, host, or user.
func AdvanceState(
	currentState string,
	containment Containment,
	scenarioCtx ScenarioContext,
	action *Decision,
	ctx *Context,
	graph *scenario.AttackGraph,
) AdvanceResult {
	if action == nil {
		if contains(containment.BlockedDomains, scenarioCtx.AttackerDomain) {
			return AdvanceResult{currentState, true, "attacker_domain_blocked", nil}
		}
		if contains(containment.IsolatedHosts, scenarioCtx.PatientZeroHost) {
			return AdvanceResult{currentState, true, "patient_zero_isolated", nil}
		}
		if contains(containment.ResetUsers, scenarioCtx.CompromisedUser) {
			return AdvanceResult{currentState, true, "compromised_user_reset", nil}
		}
		return advanceLegacyLinear(currentState)
	}

	actionType := action.ActionType
	params := paramsOf(action)
	if actionType == "" || actionType == "no_op" {
		return AdvanceResult{currentState, true, "no_op", nil}
	}

	if res, stalled := actionSpecificGate(currentState, actionType, params, containment, ctx); stalled {
		return res
	}

	if graph != nil {
		if result, handled := advanceGraph(currentState, actionType, params, ctx, graph); handled {
			return result
		}
	}

	if next, ok := ActionStateFallback[actionType]; ok {
		return AdvanceResult{next, false, "advanced_action", nil}
	}
	return advanceLegacyLinear(currentState)
}

func advanceLegacyLinear(currentState string) AdvanceResult {
	idx, ok := legacyStateIndex[currentState]
	if !ok {
		idx = 0
	}
	if idx >= len(LegacyStates)-1 {
		return AdvanceResult{currentState, false, "terminal_state", nil}
	}
	return AdvanceResult{LegacyStates[idx+1], false, "advanced", nil}
}

// actionSpecificGate applies the per-action-type containment checks that
// run before any graph lookup, regardless of whether a graph is present.
func actionSpecificGate(currentState, actionType string, params map[string]any, containment Containment, ctx *Context) (AdvanceResult, bool) {
	str := func(key string) string {
		v, _ := params[key].(string)
		return v
	}

	switch actionType {
	case "reuse_credentials":
		if contains(containment.ResetUsers, str("user")) {
			return AdvanceResult{currentState, true, "user_reset", nil}, true
		}
	case "lateral_move", "lateral_move_alt":
		if ctx != nil && len(ctx.CompromisedHosts) == 0 {
			return AdvanceResult{currentState, true, "no_foothold", nil}, true
		}
		src := str("src")
		if contains(containment.IsolatedHosts, src) {
			return AdvanceResult{currentState, true, "src_host_isolated", nil}, true
		}
		if ctx != nil && len(ctx.CompromisedHosts) > 0 && !contains(ctx.CompromisedHosts, src) {
			return AdvanceResult{currentState, true, "src_host_uncompromised", nil}, true
		}
	case "access_data":
		if ctx != nil && ctx.CurrentHost == "" {
			return AdvanceResult{currentState, true, "no_current_host", nil}, true
		}
		if ctx != nil && contains(containment.IsolatedHosts, ctx.CurrentHost) {
			return AdvanceResult{currentState, true, "current_host_isolated", nil}, true
		}
	case "exfiltrate", "exfiltrate_alt":
		if ctx != nil && ctx.CurrentHost == "" {
			return AdvanceResult{currentState, true, "no_current_host", nil}, true
		}
		if contains(containment.BlockedDomains, str("destination_domain")) {
			return AdvanceResult{currentState, true, "destination_blocked", nil}, true
		}
		if ctx != nil && contains(containment.IsolatedHosts, ctx.CurrentHost) {
			return AdvanceResult{currentState, true, "current_host_isolated", nil}, true
		}
	}
	return AdvanceResult{}, false
}

func advanceGraph(currentState, actionType string, params map[string]any, ctx *Context, graph *scenario.AttackGraph) (AdvanceResult, bool) {
	stateNode, hasState := graph.States[currentState]
	if !hasState || len(stateNode.Actions) == 0 {
		return AdvanceResult{}, false
	}

	hasAction := false
	requiresFailed := false
	paramsFailed := false
	var matched *scenario.GraphAction

	for i := range stateNode.Actions {
		edge := stateNode.Actions[i]
		if edge.ActionType != actionType {
			continue
		}
		hasAction = true
		if len(edge.Requires) > 0 && !requiresSatisfied(edge.Requires, ctx) {
			requiresFailed = true
			continue
		}
		if len(edge.MatchParams) > 0 && !paramMatches(params, edge.MatchParams) {
			paramsFailed = true
			continue
		}
		matched = &stateNode.Actions[i]
		break
	}

	if matched != nil {
		next := matched.NextState
		if next == "" {
			next = ActionStateFallback[actionType]
			if next == "" {
				next = currentState
			}
		}
		if len(graph.Objectives) > 0 && !containsAny(graph.Objectives, next) {
			return AdvanceResult{currentState, true, "objective_next_state_blocked", matched}, true
		}
		return AdvanceResult{next, false, "advanced_graph", matched}, true
	}
	if hasAction {
		if requiresFailed {
			return AdvanceResult{currentState, true, "action_requires_unsatisfied", nil}, true
		}
		if paramsFailed {
			return AdvanceResult{currentState, true, "action_params_mismatch", nil}, true
		}
		return AdvanceResult{currentState, true, "action_not_allowed", nil}, true
	}
	return AdvanceResult{currentState, true, "action_not_allowed", nil}, true
}

func containsAny(list []string, v string) bool {
	return contains(list, v)
}
