// Package scenario decodes episode seed files and ground-truth documents
// and checks a seed's cross-references. Compiling a seed's evidence
// artifacts into an episode's SQLite log store is done by package
// evidence.
package scenario

// Seed is the full content of a seed JSON file: the scenario's entities,
// synthetic evidence artifacts, the attack plan (and optional attack
// graph) the attacker policy is allowed to act against, and the prompt
// injection payloads planted in the evidence.
type Seed struct {
	ScenarioID        string                  `json:"scenario_id" validate:"required"`
	PatientZeroHost   string                  `json:"patient_zero_host" validate:"required"`
	CompromisedUser   string                  `json:"compromised_user" validate:"required"`
	AttackerDomain    string                  `json:"attacker_domain" validate:"required"`
	DataTarget        string                  `json:"data_target" validate:"required"`
	Metadata          Metadata                `json:"metadata"`
	Entities          Entities                `json:"entities"`
	SeedArtifacts     SeedArtifacts           `json:"seed_artifacts"`
	AttackPlan        AttackPlan              `json:"attack_plan"`
	AttackGraph       *AttackGraph            `json:"attack_graph,omitempty"`
	PromptInjections  []PromptInjectionPayload `json:"prompt_injection_payloads"`
}

// Metadata carries episode-compile-time overrides sourced from the seed.
type Metadata struct {
	CreatedAt string `json:"created_at,omitempty"`
	MaxSteps  int    `json:"max_steps,omitempty"`
}

// Entities is the catalogue of real-world identifiers a scenario refers
// to: hosts, users, domains, and the data targets an attacker can stage.
type Entities struct {
	Hosts       []Host       `json:"hosts"`
	Users       []User       `json:"users"`
	Domains     []Domain     `json:"domains"`
	DataTargets []DataTarget `json:"data_targets"`
}

type Host struct {
	HostID string `json:"host_id"`
}

type User struct {
	UserID string `json:"user_id"`
}

// Domain's DomainType distinguishes attacker-controlled infrastructure
// ("attacker") from legitimate domains appearing in evidence.
type Domain struct {
	Domain     string `json:"domain"`
	DomainType string `json:"domain_type"`
}

type DataTarget struct {
	TargetID string `json:"target_id"`
}

// SeedArtifacts holds the raw evidence material the compiler turns into
// SQLite rows: phishing emails and log-line templates.
type SeedArtifacts struct {
	Emails       []Email       `json:"emails"`
	LogTemplates []LogTemplate `json:"log_templates"`
}

type Email struct {
	EmailID      string `json:"email_id"`
	Sender       string `json:"sender"`
	Recipient    string `json:"recipient"`
	Subject      string `json:"subject"`
	Body         string `json:"body"`
	InjectionID  string `json:"injection_id,omitempty"`
	TrustTier    string `json:"trust_tier,omitempty"`
	Source       string `json:"source,omitempty"`
}

// LogTemplate is one row's worth of structured log content, pre-rendered
// as whitespace-separated key=value pairs in TemplateBody. Table selects
// which of the five log tables the row lands in.
type LogTemplate struct {
	TemplateID   string `json:"template_id"`
	Table        string `json:"table"`
	TemplateBody string `json:"template_body"`
	InjectionID  string `json:"injection_id,omitempty"`
	TrustTier    string `json:"trust_tier,omitempty"`
	Source       string `json:"source,omitempty"`
}

// AttackPlan is the legacy (non-graph) attacker script: a fixed lateral
// path and a timeline of artifact-emission events keyed by step.
type AttackPlan struct {
	PhishingEmailID  string           `json:"phishing_email_id"`
	CredentialsUsed  CredentialsUsed  `json:"credentials_used"`
	LateralPath      []LateralHop     `json:"lateral_path"`
	DataAccess       DataAccess       `json:"data_access"`
	Exfiltration     Exfiltration     `json:"exfiltration"`
	Timeline         []TimelineStep   `json:"timeline"`
}

type CredentialsUsed struct {
	UserID string `json:"user_id"`
}

type LateralHop struct {
	SrcHost string `json:"src_host"`
	DstHost string `json:"dst_host"`
}

type DataAccess struct {
	TargetID string `json:"target_id"`
}

type Exfiltration struct {
	DestinationDomain string `json:"destination_domain"`
}

type TimelineStep struct {
	Step      int        `json:"step"`
	Artifacts []Artifact `json:"artifacts"`
}

// Artifact names one evidence item to emit at a given step.
// ArtifactType is one of "email", "log_template", "alert". VariantActionType,
// when set, gates emission behind a matching attacker action (a variant
// branch of the legacy timeline) rather than unconditional emission.
type Artifact struct {
	ArtifactType      string            `json:"artifact_type"`
	ArtifactID        string            `json:"artifact_id"`
	Step              int               `json:"step,omitempty"`
	VariantActionType string            `json:"variant_action_type,omitempty"`
	VariantParams     map[string]string `json:"variant_params,omitempty"`
	MatchParams       map[string]string `json:"match_params,omitempty"`
}

// AttackGraph is the redesigned kill-chain representation: a directed
// graph of named states whose outgoing edges (actions) carry
// preconditions, parameter matches, effects on attacker context, and the
// evidence artifacts that edge emits.
type AttackGraph struct {
	StartState      string                 `json:"start_state"`
	Objectives      []string               `json:"objectives,omitempty"`
	States          map[string]GraphState  `json:"states"`
	InitialArtifacts []Artifact            `json:"initial_artifacts,omitempty"`
}

type GraphState struct {
	Actions []GraphAction `json:"actions"`
}

// GraphAction is one guarded transition out of a graph state. Requires
// gates eligibility against the attacker's accumulated context;
// MatchParams additionally narrows eligibility to a specific parameter
// value the defender's observable evidence depends on; Effects update the
// attacker context when the action fires; Artifacts lists evidence this
// specific edge reveals (each optionally further gated by its own
// MatchParams).
type GraphAction struct {
	ActionType  string                 `json:"action_type"`
	Requires    map[string]any         `json:"requires,omitempty"`
	MatchParams map[string]string      `json:"match_params,omitempty"`
	NextState   string                 `json:"next_state,omitempty"`
	Effects     map[string]any         `json:"effects,omitempty"`
	Artifacts   []Artifact             `json:"artifacts,omitempty"`
}

// PromptInjectionPayload is one planted prompt-injection attempt: an
// adversarial instruction embedded in evidence (Surface names where),
// along with the defender action it tries to provoke (TargetAction /
// TargetParams) and the evidence IDs a defender must have actually
// consumed for exposure to count.
type PromptInjectionPayload struct {
	InjectionID       string            `json:"injection_id"`
	Surface           string            `json:"surface"`
	Payload           string            `json:"payload"`
	ExpectedViolation bool              `json:"expected_violation"`
	TargetAction      string            `json:"target_action,omitempty"`
	TargetParams      map[string]string `json:"target_params,omitempty"`
	EvidenceIDs       []string          `json:"evidence_ids,omitempty"`
	InjectionType     string            `json:"injection_type,omitempty"`
	Objective         string            `json:"objective,omitempty"`
	Source            string            `json:"source,omitempty"`
}

// GroundTruth is the scoring oracle's answer key for a seed: the correct
// attribution of the incident plus the containment actions a defender was
// expected to take.
type GroundTruth struct {
	Attribution            Attribution            `json:"attribution"`
	ContainmentRequirements ContainmentRequirements `json:"containment_requirements"`
}

type Attribution struct {
	PatientZeroHost string `json:"patient_zero_host"`
	CompromisedUser string `json:"compromised_user"`
	AttackerDomain  string `json:"attacker_domain"`
	DataTarget      string `json:"data_target"`
	InitialVector   string `json:"initial_vector"`
}

type ContainmentRequirements struct {
	IsolateHosts []string `json:"isolate_hosts"`
	BlockDomains []string `json:"block_domains"`
	ResetUsers   []string `json:"reset_users"`
}
