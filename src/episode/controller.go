package episode

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/opensec-sim/irsim/src/attacker"
	"github.com/opensec-sim/irsim/src/defender"
	"github.com/opensec-sim/irsim/src/evidence"
	"github.com/opensec-sim/irsim/src/oracle"
	"github.com/opensec-sim/irsim/src/scenario"
)

// Config are the episode-construction-time parameters a Controller
// reads once and does not change for its lifetime.
type Config struct {
	SeedPath       string
	EvidenceDir    string
	MaxSteps       int
	MaskInjections bool
	AttackerStrict bool
}

// Controller owns everything one episode needs end to end: the
// compiled evidence store, the attacker's kill-chain state and
// accumulated foothold, the defender's executed containment, and the
// running evidence-exposure sets the injection verifier and the
// calibration metrics both read from.
//
// The replay cache and the attacker policy are process-wide resources
// the caller constructs once and passes in; a Controller never owns
// either.
type Controller struct {
	cfg Config

	Policy        attacker.Policy
	PolicyManager *attacker.PolicyManager

	EpisodeID     string
	ScenarioID    string
	StepCount     int
	MaxSteps      int
	AttackerState string

	AttackerContext attacker.Context
	Containment     defender.ContainmentState

	Seed        *scenario.Seed
	GroundTruth *scenario.GroundTruth
	Store       *evidence.Store
	templates   map[string]scenario.LogTemplate

	SeenEvidenceIDs     map[string]struct{}
	ContentEvidenceIDs  map[string]struct{}
	InjectionViolations []string

	// trace feeds post-episode calibration metrics: one StepRecord and
	// one EvidenceExtraction per defender action taken so far.
	trace          []oracle.StepRecord
	traceEvidence  []oracle.EvidenceExtraction
	knownEntities  map[string]struct{}
}

// NewController builds a Controller against a policy and policy
// manager the caller owns for the life of the process.
func NewController(cfg Config, policy attacker.Policy, manager *attacker.PolicyManager) *Controller {
	return &Controller{cfg: cfg, Policy: policy, PolicyManager: manager, MaxSteps: cfg.MaxSteps}
}

// Reset loads the seed fresh, compiles a new evidence store, and
// returns the step-0 observation: evidence pre-seeded at step 0 (from
// initial_artifacts or the legacy timeline) is already visible.
func (c *Controller) Reset(ctx context.Context) (*StepResult, error) {
	if c.Store != nil {
		c.Store.Close()
	}

	c.EpisodeID = uuid.NewString()
	c.StepCount = 0
	c.AttackerContext = attacker.Context{}
	c.Containment = defender.ContainmentState{}
	c.SeenEvidenceIDs = map[string]struct{}{}
	c.ContentEvidenceIDs = map[string]struct{}{}
	c.InjectionViolations = nil
	c.trace = nil
	c.traceEvidence = nil

	seed, err := scenario.Load(c.cfg.SeedPath)
	if err != nil {
		return nil, fmt.Errorf("episode: load seed: %w", err)
	}
	c.Seed = seed
	c.ScenarioID = seed.ScenarioID
	c.MaxSteps = c.cfg.MaxSteps
	if seed.Metadata.MaxSteps > 0 {
		c.MaxSteps = seed.Metadata.MaxSteps
	}
	c.knownEntities = oracle.CollectKnownEntities(seed)

	groundTruth, err := scenario.LoadGroundTruth(scenario.GroundTruthPath(c.cfg.SeedPath))
	if err != nil {
		return nil, fmt.Errorf("episode: load ground truth: %w", err)
	}
	c.GroundTruth = groundTruth

	c.AttackerState = "phish_sent"
	if seed.AttackGraph != nil && seed.AttackGraph.StartState != "" {
		c.AttackerState = seed.AttackGraph.StartState
	}
	if c.cfg.MaskInjections {
		seed.PromptInjections = nil
	}

	dbPath := filepath.Join(c.cfg.EvidenceDir, fmt.Sprintf("%s-%s.db", c.ScenarioID, c.EpisodeID))
	store, err := evidence.Open(ctx, dbPath, seed)
	if err != nil {
		return nil, fmt.Errorf("episode: init evidence store: %w", err)
	}
	c.Store = store
	c.templates = evidence.Templates(seed)

	newEmails, err := store.EmailsForStep(ctx, c.ScenarioID, 0)
	if err != nil {
		return nil, err
	}
	newAlerts, err := store.AlertsForStep(ctx, c.ScenarioID, 0)
	if err != nil {
		return nil, err
	}
	c.recordEvidence(newEmails, newAlerts)

	observation := Observation{
		ScenarioID:         c.ScenarioID,
		StepIndex:          c.StepCount,
		AttackerState:      c.AttackerState,
		Containment:        c.Containment,
		NewEmails:          newEmails,
		NewAlerts:          newAlerts,
		EvidenceSeenIDs:    sortedIDs(c.SeenEvidenceIDs),
		EvidenceContentIDs: sortedIDs(c.ContentEvidenceIDs),
		LastActionResult:   defender.ActionResult{OK: true, Message: "reset", Data: map[string]any{}},
		Hint:               "Environment ready",
		Done:               false,
		Reward:             nil,
		Metadata:           map[string]any{"info": map[string]any{}, "state": c.State()},
	}

	return &StepResult{
		Observation: observation,
		Reward:      0,
		Done:        false,
		Info:        map[string]any{},
		State:       c.State(),
	}, nil
}

// Step applies one defender action and advances the episode by exactly
// one tick, in the fixed order: apply the defender action, detect
// injection violations against the evidence it just exposed, let the
// attacker policy decide, advance the kill-chain state, emit whatever
// artifacts that transition reveals, apply the attacker's effects,
// surface the step's new evidence, and — only for submit_report —
// score the episode.
func (c *Controller) Step(ctx context.Context, action defender.AgentAction) (*StepResult, error) {
	result, contentIDs, err := defender.Apply(ctx, c.Store, c.ScenarioID, &c.Containment, action)
	if err != nil {
		return nil, fmt.Errorf("episode: apply action: %w", err)
	}
	for _, id := range contentIDs {
		c.ContentEvidenceIDs[id] = struct{}{}
	}

	c.recordCalibrationStep(action, result)

	violations := oracle.DetectInjectionViolations(action.ActionType, action.Params, c.ContentEvidenceIDs, c.Seed.PromptInjections)
	c.InjectionViolations = append(c.InjectionViolations, violations...)

	attackerContextPayload := c.attackerPolicyContext()
	decision, err := c.PolicyManager.Decide(
		ctx, c.ScenarioID, c.StepCount, c.AttackerState,
		action.AsJSON(), c.Policy, c.Seed, attackerContextPayload, c.cfg.AttackerStrict,
	)
	if err != nil {
		return nil, fmt.Errorf("episode: attacker decide: %w", err)
	}

	priorState := c.AttackerState
	scenarioCtx := attacker.ScenarioContext{
		AttackerDomain:  c.Seed.AttackerDomain,
		PatientZeroHost: c.Seed.PatientZeroHost,
		CompromisedUser: c.Seed.CompromisedUser,
	}
	containmentGate := attacker.Containment{
		IsolatedHosts:  c.Containment.IsolatedHosts,
		BlockedDomains: c.Containment.BlockedDomains,
		ResetUsers:     c.Containment.ResetUsers,
	}
	advance := attacker.AdvanceState(c.AttackerState, containmentGate, scenarioCtx, &decision, &c.AttackerContext, c.Seed.AttackGraph)
	c.AttackerState = advance.NextState

	c.StepCount++
	if c.Seed.AttackGraph != nil {
		c.emitActionArtifacts(ctx, c.StepCount, priorState, decision)
	} else {
		c.emitVariantArtifacts(ctx, c.StepCount, decision)
	}
	if !advance.Stalled {
		var effects map[string]any
		if advance.MatchedAction != nil {
			effects = advance.MatchedAction.Effects
		}
		attacker.ApplyAttackerAction(&c.AttackerContext, &decision, effects)
	}
	done := c.StepCount >= c.MaxSteps

	newEmails, err := c.Store.EmailsForStep(ctx, c.ScenarioID, c.StepCount)
	if err != nil {
		return nil, err
	}
	newAlerts, err := c.Store.AlertsForStep(ctx, c.ScenarioID, c.StepCount)
	if err != nil {
		return nil, err
	}
	c.recordEvidence(newEmails, newAlerts)

	reward := 0.0
	info := map[string]any{
		"action_type":         action.ActionType,
		"attacker_action":     decisionJSON(decision),
		"attacker_stalled":    advance.Stalled,
		"attacker_reason":     advance.Reason,
		"injection_violations": append([]string(nil), c.InjectionViolations...),
	}
	if action.ActionType == "submit_report" && c.GroundTruth != nil {
		report, _ := action.Params["summary_json"].(map[string]any)
		executed := oracle.ContainmentToActions(c.Containment)
		score := oracle.ScoreReport(report, *c.GroundTruth, c.StepCount, c.InjectionViolations, &executed)
		reward = score.Reward
		info["score"] = score
		info["calibration"] = c.calibrationSummary()
	}

	rewardPtr := reward
	observation := Observation{
		ScenarioID:         c.ScenarioID,
		StepIndex:          c.StepCount,
		AttackerState:      c.AttackerState,
		Containment:        c.Containment,
		NewEmails:          newEmails,
		NewAlerts:          newAlerts,
		EvidenceSeenIDs:    sortedIDs(c.SeenEvidenceIDs),
		EvidenceContentIDs: sortedIDs(c.ContentEvidenceIDs),
		LastActionResult:   result,
		Done:               done,
		Reward:             &rewardPtr,
		Metadata:           map[string]any{"info": info, "state": c.State()},
	}

	return &StepResult{
		Observation: observation,
		Reward:      reward,
		Done:        done,
		Info:        info,
		State:       c.State(),
	}, nil
}

// State returns the episode's current bookkeeping snapshot.
func (c *Controller) State() State {
	return State{
		EpisodeID:  c.EpisodeID,
		ScenarioID: c.ScenarioID,
		StepCount:  c.StepCount,
		MaxSteps:   c.MaxSteps,
		Terminated: false,
		Truncated:  c.StepCount >= c.MaxSteps,
	}
}

func (c *Controller) recordEvidence(newEmails, newAlerts []string) {
	for _, id := range newEmails {
		c.SeenEvidenceIDs[id] = struct{}{}
	}
	for _, id := range newAlerts {
		c.SeenEvidenceIDs[id] = struct{}{}
	}
}

// recordCalibrationStep appends this action and the trusted-entity
// extraction from its result to the episode's calibration trace, used
// at submit_report time to compute EGAR/TTFC/blast radius.
func (c *Controller) recordCalibrationStep(action defender.AgentAction, result defender.ActionResult) {
	c.trace = append(c.trace, oracle.StepRecord{ActionType: action.ActionType, Params: action.Params})
	var data any
	if result.Data != nil {
		data = result.Data
	}
	c.traceEvidence = append(c.traceEvidence, oracle.ExtractEntitiesFromEvidence(data, c.knownEntities))
}

func (c *Controller) calibrationSummary() oracle.CalibrationMetrics {
	return oracle.ComputeEvidenceGating(c.trace, c.traceEvidence)
}

func (c *Controller) attackerPolicyContext() map[string]any {
	entities := c.Seed.Entities
	hosts := make([]string, 0, len(entities.Hosts))
	for _, h := range entities.Hosts {
		hosts = append(hosts, h.HostID)
	}
	users := make([]string, 0, len(entities.Users))
	for _, u := range entities.Users {
		users = append(users, u.UserID)
	}
	var attackerDomains []string
	for _, d := range entities.Domains {
		if d.DomainType == "attacker" {
			attackerDomains = append(attackerDomains, d.Domain)
		}
	}

	isolated := toSet(c.Containment.IsolatedHosts)
	reset := toSet(c.Containment.ResetUsers)
	blocked := toSet(c.Containment.BlockedDomains)

	return map[string]any{
		"step": c.StepCount,
		"containment": map[string]any{
			"isolated_hosts": sortedSliceCopy(c.Containment.IsolatedHosts),
			"blocked_domains": sortedSliceCopy(c.Containment.BlockedDomains),
			"reset_users":    sortedSliceCopy(c.Containment.ResetUsers),
		},
		"available_hosts":            sortedFiltered(hosts, isolated),
		"available_users":            sortedFiltered(users, reset),
		"available_attacker_domains": sortedFiltered(attackerDomains, blocked),
		"compromised_hosts":          sortedSliceCopy(c.AttackerContext.CompromisedHosts),
		"compromised_users":          sortedSliceCopy(c.AttackerContext.CompromisedUsers),
		"current_host":               c.AttackerContext.CurrentHost,
		"current_user":               c.AttackerContext.CurrentUser,
		"current_target":             c.AttackerContext.CurrentTarget,
		"current_exfil_domain":       c.AttackerContext.CurrentExfilDomain,
		"has_creds":                  c.AttackerContext.HasCreds,
		"has_admin":                  c.AttackerContext.HasAdmin,
		"has_stage":                  c.AttackerContext.HasStage,
		"has_persistence":            c.AttackerContext.HasPersistence,
	}
}

func (c *Controller) emitVariantArtifacts(ctx context.Context, step int, decision attacker.Decision) {
	if c.Seed == nil || decision.ActionType == "" {
		return
	}
	for _, item := range c.Seed.AttackPlan.Timeline {
		if item.Step != step {
			continue
		}
		for _, art := range item.Artifacts {
			if art.VariantActionType == "" || art.VariantActionType != decision.ActionType {
				continue
			}
			if !paramsMatch(decision.Params, art.VariantParams) {
				continue
			}
			_ = c.Store.EmitArtifact(ctx, c.Seed, step, art, c.templates)
		}
	}
}

func (c *Controller) emitActionArtifacts(ctx context.Context, step int, priorState string, decision attacker.Decision) {
	if c.Seed.AttackGraph == nil || decision.ActionType == "" || decision.ActionType == "no_op" {
		return
	}
	node, ok := c.Seed.AttackGraph.States[priorState]
	if !ok {
		return
	}
	for _, graphAction := range node.Actions {
		if graphAction.ActionType != decision.ActionType {
			continue
		}
		if !paramsMatch(decision.Params, graphAction.MatchParams) {
			continue
		}
		for _, art := range graphAction.Artifacts {
			if !paramsMatch(decision.Params, art.MatchParams) {
				continue
			}
			_ = c.Store.EmitArtifact(ctx, c.Seed, step, art, c.templates)
		}
	}
}

func paramsMatch(params map[string]any, match map[string]string) bool {
	for k, v := range match {
		actual, _ := params[k].(string)
		if actual != v {
			return false
		}
	}
	return true
}

func decisionJSON(d attacker.Decision) map[string]any {
	out := map[string]any{"action_type": d.ActionType, "params": d.Params}
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

func sortedIDs(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func sortedSliceCopy(list []string) []string {
	out := append([]string(nil), list...)
	sort.Strings(out)
	return out
}

func toSet(list []string) map[string]struct{} {
	set := make(map[string]struct{}, len(list))
	for _, v := range list {
		set[v] = struct{}{}
	}
	return set
}

func sortedFiltered(list []string, exclude map[string]struct{}) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if _, excluded := exclude[v]; !excluded {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
