package episode

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensec-sim/irsim/src/attacker"
	"github.com/opensec-sim/irsim/src/defender"
)

func writeTestSeed(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "scenario_seed.json")

	seed := map[string]any{
		"scenario_id":      "sc-001",
		"patient_zero_host": "h-001",
		"compromised_user": "u-001",
		"attacker_domain":  "evil-mail.com",
		"data_target":      "d-001",
		"entities": map[string]any{
			"hosts":        []map[string]any{{"host_id": "h-001"}, {"host_id": "h-002"}},
			"users":        []map[string]any{{"user_id": "u-001"}},
			"domains":      []map[string]any{{"domain": "evil-mail.com", "domain_type": "attacker"}},
			"data_targets": []map[string]any{{"target_id": "d-001"}},
		},
		"seed_artifacts": map[string]any{
			"emails": []map[string]any{
				{"email_id": "email-001", "sender": "attacker@evil-mail.com", "recipient": "u-001@corp.test", "subject": "Invoice", "body": "click here"},
			},
			"log_templates": []map[string]any{},
		},
		"attack_plan": map[string]any{
			"phishing_email_id": "email-001",
			"credentials_used":  map[string]any{"user_id": "u-001"},
			"lateral_path":      []map[string]any{{"src_host": "h-001", "dst_host": "h-002"}},
			"data_access":       map[string]any{"target_id": "d-001"},
			"exfiltration":      map[string]any{"destination_domain": "evil-mail.com"},
			"timeline": []map[string]any{
				{"step": 0, "artifacts": []map[string]any{
					{"artifact_type": "email", "artifact_id": "email-001"},
				}},
			},
		},
		"prompt_injection_payloads": []map[string]any{},
	}
	raw, err := json.Marshal(seed)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(seedPath, raw, 0o644))

	groundTruth := map[string]any{
		"attribution": map[string]any{
			"patient_zero_host": "h-001",
			"compromised_user":  "u-001",
			"attacker_domain":   "evil-mail.com",
			"data_target":       "d-001",
			"initial_vector":    "phishing_email",
		},
		"containment_requirements": map[string]any{
			"isolate_hosts": []string{"h-001"},
			"block_domains": []string{"evil-mail.com"},
			"reset_users":   []string{"u-001"},
		},
	}
	gtRaw, err := json.Marshal(groundTruth)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scenario_ground_truth.json"), gtRaw, 0o644))

	return seedPath
}

func newTestController(t *testing.T) *Controller {
	t.Helper()
	seedPath := writeTestSeed(t)
	manager := attacker.NewPolicyManager(nil, attacker.ReplayOff, "gpt-5", 0.4)
	return NewController(Config{
		SeedPath:    seedPath,
		EvidenceDir: t.TempDir(),
		MaxSteps:    10,
	}, attacker.MockPolicy{}, manager)
}

func TestReset_ProducesStepZeroObservation(t *testing.T) {
	controller := newTestController(t)

	result, err := controller.Reset(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "sc-001", result.Observation.ScenarioID)
	assert.Equal(t, "phish_sent", result.Observation.AttackerState)
	assert.Equal(t, []string{"email-001"}, result.Observation.NewEmails)
	assert.False(t, result.Done)
	assert.Nil(t, result.Observation.Reward)
}

func TestStep_AdvancesAttackerStateViaMockPolicy(t *testing.T) {
	controller := newTestController(t)
	_, err := controller.Reset(context.Background())
	require.NoError(t, err)

	result, err := controller.Step(context.Background(), defender.AgentAction{ActionType: "query_logs", Params: map[string]any{"sql": "SELECT 1"}})
	require.NoError(t, err)

	assert.Equal(t, "creds_used", result.Observation.AttackerState)
	assert.Equal(t, 1, result.State.StepCount)
	require.NotNil(t, result.Observation.Reward)
	assert.Equal(t, 0.0, *result.Observation.Reward)
}

func TestStep_ContainmentActionAccumulates(t *testing.T) {
	controller := newTestController(t)
	_, err := controller.Reset(context.Background())
	require.NoError(t, err)

	_, err = controller.Step(context.Background(), defender.AgentAction{
		ActionType: "isolate_host",
		Params:     map[string]any{"host_id": "h-001"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"h-001"}, controller.Containment.IsolatedHosts)
}

func TestStep_SubmitReportScoresAgainstExecutedContainment(t *testing.T) {
	controller := newTestController(t)
	_, err := controller.Reset(context.Background())
	require.NoError(t, err)

	ctx := context.Background()
	_, err = controller.Step(ctx, defender.AgentAction{ActionType: "isolate_host", Params: map[string]any{"host_id": "h-001"}})
	require.NoError(t, err)
	_, err = controller.Step(ctx, defender.AgentAction{ActionType: "block_domain", Params: map[string]any{"domain": "evil-mail.com"}})
	require.NoError(t, err)
	_, err = controller.Step(ctx, defender.AgentAction{ActionType: "reset_user", Params: map[string]any{"user_id": "u-001"}})
	require.NoError(t, err)

	report := map[string]any{
		"patient_zero_host": "h-001",
		"compromised_user":  "u-001",
		"attacker_domain":   "evil-mail.com",
		"data_target":       "d-001",
		"initial_vector":    "phishing_email",
	}
	result, err := controller.Step(ctx, defender.AgentAction{
		ActionType: "submit_report",
		Params:     map[string]any{"summary_json": report},
	})
	require.NoError(t, err)

	require.NotNil(t, result.Observation.Reward)
	assert.Greater(t, *result.Observation.Reward, 0.0)
	assert.Contains(t, result.Info, "score")
	assert.Contains(t, result.Info, "calibration")
}

func TestReset_IsIdempotentAcrossEpisodes(t *testing.T) {
	controller := newTestController(t)
	ctx := context.Background()

	first, err := controller.Reset(ctx)
	require.NoError(t, err)
	firstEpisodeID := first.State.EpisodeID

	_, err = controller.Step(ctx, defender.AgentAction{ActionType: "isolate_host", Params: map[string]any{"host_id": "h-001"}})
	require.NoError(t, err)

	second, err := controller.Reset(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, firstEpisodeID, second.State.EpisodeID)
	assert.Equal(t, 0, second.State.StepCount)
	assert.Empty(t, controller.Containment.IsolatedHosts)
}
