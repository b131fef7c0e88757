package defender

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensec-sim/irsim/src/evidence"
	"github.com/opensec-sim/irsim/src/scenario"
)

func testSeed() *scenario.Seed {
	return &scenario.Seed{
		ScenarioID:      "sc-001",
		PatientZeroHost: "h-001",
		CompromisedUser: "u-001",
		AttackerDomain:  "evil-mail.com",
		DataTarget:      "d-001",
		SeedArtifacts: scenario.SeedArtifacts{
			Emails: []scenario.Email{{EmailID: "email-001", Subject: "Invoice"}},
			LogTemplates: []scenario.LogTemplate{
				{TemplateID: "tpl-auth-1", Table: "auth_logs", TemplateBody: "user=u-001 host=h-001"},
			},
		},
		AttackPlan: scenario.AttackPlan{
			Timeline: []scenario.TimelineStep{
				{Step: 0, Artifacts: []scenario.Artifact{
					{ArtifactType: "email", ArtifactID: "email-001"},
					{ArtifactType: "log_template", ArtifactID: "tpl-auth-1"},
				}},
			},
		},
	}
}

func openStore(t *testing.T) *evidence.Store {
	t.Helper()
	store, err := evidence.Open(context.Background(), filepath.Join(t.TempDir(), "ep.db"), testSeed())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestApply_IsolateHost(t *testing.T) {
	containment := &ContainmentState{}
	result, exposed, err := Apply(context.Background(), nil, "sc-001", containment, AgentAction{
		ActionType: "isolate_host",
		Params:     map[string]any{"host_id": "h-001"},
	})

	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, []string{"h-001"}, containment.IsolatedHosts)
	assert.Nil(t, exposed)
}

func TestApply_IsolateHostIsIdempotent(t *testing.T) {
	containment := &ContainmentState{}
	action := AgentAction{ActionType: "isolate_host", Params: map[string]any{"host_id": "h-001"}}

	_, _, err := Apply(context.Background(), nil, "sc-001", containment, action)
	require.NoError(t, err)
	_, _, err = Apply(context.Background(), nil, "sc-001", containment, action)
	require.NoError(t, err)

	assert.Equal(t, []string{"h-001"}, containment.IsolatedHosts)
}

func TestApply_QueryLogsRejectsNonSelect(t *testing.T) {
	store := openStore(t)
	result, exposed, err := Apply(context.Background(), store, "sc-001", &ContainmentState{}, AgentAction{
		ActionType: "query_logs",
		Params:     map[string]any{"sql": "DROP TABLE auth_logs"},
	})

	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Nil(t, exposed)
}

func TestApply_QueryLogsExposesRowIDs(t *testing.T) {
	store := openStore(t)
	result, exposed, err := Apply(context.Background(), store, "sc-001", &ContainmentState{}, AgentAction{
		ActionType: "query_logs",
		Params:     map[string]any{"sql": "SELECT * FROM auth_logs WHERE scenario_id = 'sc-001'"},
	})

	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, []string{"auth-sc-001-0"}, exposed)
}

func TestApply_FetchEmailExposesEmailID(t *testing.T) {
	store := openStore(t)
	result, exposed, err := Apply(context.Background(), store, "sc-001", &ContainmentState{}, AgentAction{
		ActionType: "fetch_email",
		Params:     map[string]any{"email_id": "email-001"},
	})

	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, []string{"email-001"}, exposed)
}

func TestApply_FetchEmailRequiresID(t *testing.T) {
	store := openStore(t)
	result, exposed, err := Apply(context.Background(), store, "sc-001", &ContainmentState{}, AgentAction{
		ActionType: "fetch_email",
		Params:     map[string]any{},
	})

	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Nil(t, exposed)
}

func TestApply_UnrecognizedActionIsANoOpSuccess(t *testing.T) {
	result, exposed, err := Apply(context.Background(), nil, "sc-001", &ContainmentState{}, AgentAction{ActionType: "no_op"})

	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Nil(t, exposed)
}
