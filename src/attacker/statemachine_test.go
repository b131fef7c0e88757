package attacker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opensec-sim/irsim/src/scenario"
)

func testScenarioCtx() ScenarioContext {
	return ScenarioContext{
		AttackerDomain:  "evil-mail.com",
		PatientZeroHost: "h-001",
		CompromisedUser: "u-001",
	}
}

func TestAdvanceState_LegacyLinearProgression(t *testing.T) {
	state := "phish_sent"
	for _, want := range LegacyStates[1:] {
		result := AdvanceState(state, Containment{}, testScenarioCtx(), nil, &Context{}, nil)
		assert.False(t, result.Stalled)
		assert.Equal(t, want, result.NextState)
		state = result.NextState
	}

	result := AdvanceState(state, Containment{}, testScenarioCtx(), nil, &Context{}, nil)
	assert.False(t, result.Stalled)
	assert.Equal(t, "terminal_state", result.Reason)
	assert.Equal(t, state, result.NextState)
}

func TestAdvanceState_LegacyContainmentGating(t *testing.T) {
	cases := []struct {
		name        string
		containment Containment
		wantReason  string
	}{
		{"domain blocked", Containment{BlockedDomains: []string{"evil-mail.com"}}, "attacker_domain_blocked"},
		{"host isolated", Containment{IsolatedHosts: []string{"h-001"}}, "patient_zero_isolated"},
		{"user reset", Containment{ResetUsers: []string{"u-001"}}, "compromised_user_reset"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := AdvanceState("phish_sent", tc.containment, testScenarioCtx(), nil, &Context{}, nil)
			assert.True(t, result.Stalled)
			assert.Equal(t, tc.wantReason, result.Reason)
			assert.Equal(t, "phish_sent", result.NextState)
		})
	}
}

func TestAdvanceState_NoOpActionStalls(t *testing.T) {
	result := AdvanceState("phish_sent", Containment{}, testScenarioCtx(), &NoOpAction, &Context{}, nil)
	assert.True(t, result.Stalled)
	assert.Equal(t, "no_op", result.Reason)
}

func TestAdvanceState_ActionFallbackAdvances(t *testing.T) {
	action := &Decision{ActionType: "reuse_credentials", Params: map[string]any{"user": "u-001", "host": "h-001"}}
	result := AdvanceState("phish_sent", Containment{}, testScenarioCtx(), action, &Context{}, nil)

	assert.False(t, result.Stalled)
	assert.Equal(t, "creds_used", result.NextState)
}

func TestAdvanceState_LateralMoveRequiresFoothold(t *testing.T) {
	action := &Decision{ActionType: "lateral_move", Params: map[string]any{"src": "h-001", "dst": "h-002"}}
	result := AdvanceState("creds_used", Containment{}, testScenarioCtx(), action, &Context{}, nil)

	assert.True(t, result.Stalled)
	assert.Equal(t, "no_foothold", result.Reason)
}

func TestAdvanceState_LateralMoveSourceHostIsolated(t *testing.T) {
	ctx := &Context{CompromisedHosts: []string{"h-001"}, CurrentHost: "h-001"}
	action := &Decision{ActionType: "lateral_move", Params: map[string]any{"src": "h-001", "dst": "h-002"}}
	result := AdvanceState("creds_used", Containment{IsolatedHosts: []string{"h-001"}}, testScenarioCtx(), action, ctx, nil)

	assert.True(t, result.Stalled)
	assert.Equal(t, "src_host_isolated", result.Reason)
}

func testGraph() *scenario.AttackGraph {
	return &scenario.AttackGraph{
		StartState: "phish_sent",
		Objectives: []string{"creds_used", "exfil_attempt"},
		States: map[string]scenario.GraphState{
			"phish_sent": {
				Actions: []scenario.GraphAction{
					{ActionType: "reuse_credentials", NextState: "creds_used", Effects: map[string]any{"has_creds": true}},
				},
			},
			"creds_used": {
				Actions: []scenario.GraphAction{
					{
						ActionType:  "lateral_move",
						Requires:    map[string]any{"has_creds": true},
						MatchParams: map[string]string{"dst": "h-002"},
						NextState:   "exfil_attempt",
						Effects:     map[string]any{"compromise_host": "h-002"},
					},
				},
			},
		},
	}
}

func TestAdvanceState_GraphMatchedActionAdvances(t *testing.T) {
	graph := testGraph()
	action := &Decision{ActionType: "reuse_credentials", Params: map[string]any{}}
	result := AdvanceState("phish_sent", Containment{}, testScenarioCtx(), action, &Context{}, graph)

	assert.False(t, result.Stalled)
	assert.Equal(t, "creds_used", result.NextState)
	assert.Equal(t, "advanced_graph", result.Reason)
	assert.NotNil(t, result.MatchedAction)
}

func TestAdvanceState_GraphRequiresUnsatisfiedStalls(t *testing.T) {
	graph := testGraph()
	action := &Decision{ActionType: "lateral_move", Params: map[string]any{"src": "h-001", "dst": "h-002"}}
	ctx := &Context{HasCreds: false, CompromisedHosts: []string{"h-001"}, CurrentHost: "h-001"}
	result := AdvanceState("creds_used", Containment{}, testScenarioCtx(), action, ctx, graph)

	assert.True(t, result.Stalled)
	assert.Equal(t, "action_requires_unsatisfied", result.Reason)
}

func TestAdvanceState_GraphParamMismatchStalls(t *testing.T) {
	graph := testGraph()
	action := &Decision{ActionType: "lateral_move", Params: map[string]any{"src": "h-001", "dst": "h-999"}}
	ctx := &Context{HasCreds: true, CompromisedHosts: []string{"h-001"}, CurrentHost: "h-001"}
	result := AdvanceState("creds_used", Containment{}, testScenarioCtx(), action, ctx, graph)

	assert.True(t, result.Stalled)
	assert.Equal(t, "action_params_mismatch", result.Reason)
}

func TestAdvanceState_GraphActionNotAllowedStalls(t *testing.T) {
	graph := testGraph()
	action := &Decision{ActionType: "access_data", Params: map[string]any{}}
	result := AdvanceState("phish_sent", Containment{}, testScenarioCtx(), action, &Context{CurrentHost: "h-001"}, graph)

	assert.True(t, result.Stalled)
	assert.Equal(t, "action_not_allowed", result.Reason)
}

func TestAdvanceState_GraphObjectiveBlocksNextState(t *testing.T) {
	graph := testGraph()
	graph.Objectives = []string{"some_other_state"}
	action := &Decision{ActionType: "reuse_credentials", Params: map[string]any{}}
	result := AdvanceState("phish_sent", Containment{}, testScenarioCtx(), action, &Context{}, graph)

	assert.True(t, result.Stalled)
	assert.Equal(t, "objective_next_state_blocked", result.Reason)
}

func TestApplyAttackerAction_LegacyCredsPath(t *testing.T) {
	ctx := &Context{}
	action := &Decision{ActionType: "reuse_credentials", Params: map[string]any{"user": "u-001", "host": "h-001"}}
	ApplyAttackerAction(ctx, action, nil)

	assert.True(t, ctx.HasCreds)
	assert.Equal(t, "h-001", ctx.CurrentHost)
	assert.Equal(t, "u-001", ctx.CurrentUser)
}

func TestApplyAttackerAction_GraphEffectsPath(t *testing.T) {
	ctx := &Context{}
	action := &Decision{ActionType: "lateral_move", Params: map[string]any{}}
	ApplyAttackerAction(ctx, action, map[string]any{"compromise_host": "h-002", "has_admin": true})

	assert.Equal(t, "h-002", ctx.CurrentHost)
	assert.True(t, ctx.HasAdmin)
}
