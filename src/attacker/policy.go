package attacker

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"

	"github.com/opensec-sim/irsim/src/jsonutil"
	"github.com/opensec-sim/irsim/src/scenario"
)

// Policy chooses the attacker's next action given the scenario, its
// current kill-chain state, the defender's most recent action, and the
// containment-aware context the episode controller assembles for it.
type Policy interface {
	ChooseAction(ctx context.Context, seed *scenario.Seed, attackerState string, agentAction map[string]any, attackerContext map[string]any) (Decision, error)
}

// MockPolicy plays a fixed, deterministic table of actions per
// kill-chain state. It needs no network access and is the default
// backend for local development and unit tests.
type MockPolicy struct{}

func firstOr(list []string, fallback string) string {
	if len(list) > 0 {
		return list[0]
	}
	return fallback
}

func secondOr(list []string, fallback string) string {
	if len(list) > 1 {
		return list[1]
	}
	return fallback
}

func stringsFromAny(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (MockPolicy) ChooseAction(_ context.Context, seed *scenario.Seed, attackerState string, _ map[string]any, attackerContext map[string]any) (Decision, error) {
	entities := seed.Entities
	allUsers := make([]string, len(entities.Users))
	for i, u := range entities.Users {
		allUsers[i] = u.UserID
	}
	allHosts := make([]string, len(entities.Hosts))
	for i, h := range entities.Hosts {
		allHosts[i] = h.HostID
	}

	var availableUsers, availableHosts, availableDomains []string
	if attackerContext != nil {
		availableUsers = stringsFromAny(attackerContext["available_users"])
		availableHosts = stringsFromAny(attackerContext["available_hosts"])
		availableDomains = stringsFromAny(attackerContext["available_attacker_domains"])
	}

	user := firstOr(availableUsers, firstOr(allUsers, ""))
	host := firstOr(availableHosts, firstOr(allHosts, ""))

	var dstHost string
	if len(availableHosts) > 1 {
		dstHost = availableHosts[1]
	} else if len(allHosts) > 1 {
		dstHost = allHosts[1]
	} else {
		dstHost = host
	}

	target := ""
	if len(entities.DataTargets) > 0 {
		target = entities.DataTargets[0].TargetID
	}

	attackerDomain := firstOr(availableDomains, "")
	if attackerDomain == "" {
		for _, d := range entities.Domains {
			if d.DomainType == "attacker" {
				attackerDomain = d.Domain
				break
			}
		}
	}

	switch attackerState {
	case "phish_sent":
		return Decision{ActionType: "reuse_credentials", Params: map[string]any{"user": user, "host": host}}, nil
	case "recon":
		return Decision{ActionType: "send_phish", Params: map[string]any{"target_user": user}}, nil
	case "access":
		return Decision{ActionType: "reuse_credentials", Params: map[string]any{"user": user, "host": host}}, nil
	case "persistence":
		return Decision{ActionType: "establish_persistence", Params: map[string]any{"host": host}}, nil
	case "lateral_spread":
		return Decision{ActionType: "lateral_move", Params: map[string]any{"src": host, "dst": dstHost}}, nil
	case "staging":
		return Decision{ActionType: "stage_data", Params: map[string]any{"target": target, "host": host}}, nil
	case "exfil":
		return Decision{ActionType: "exfiltrate", Params: map[string]any{"channel": "https", "destination_domain": attackerDomain}}, nil
	case "creds_used":
		return Decision{ActionType: "lateral_move", Params: map[string]any{"src": host, "dst": dstHost}}, nil
	case "lateral_move":
		return Decision{ActionType: "access_data", Params: map[string]any{"target": target}}, nil
	case "data_access":
		return Decision{ActionType: "exfiltrate", Params: map[string]any{"channel": "https", "destination_domain": attackerDomain}}, nil
	}
	return Decision{ActionType: "no_op", Params: map[string]any{}}, nil
}

// StrictError is raised by LLM-backed policies when OPENSEC_ATTACKER_STRICT
// forbids them from silently falling back to no_op on a malformed or
// invalid response.
type StrictError struct{ Reason string }

func (e *StrictError) Error() string { return fmt.Sprintf("attacker: %s", e.Reason) }

// RemotePolicy drives the attacker from a hosted OpenAI-compatible chat
// model. Strict controls whether a malformed or disallowed completion
// returns a StrictError instead of silently degrading to no_op.
type RemotePolicy struct {
	Client      openai.Client
	Model       string
	Temperature *float64
	Strict      bool
	limiter     *rate.Limiter
}

// NewRemotePolicy builds a RemotePolicy against the default OpenAI API
// endpoint, rate limited to protect both the attacker's budget and the
// upstream account's rate limit.
func NewRemotePolicy(apiKey, model string, temperature *float64, strict bool) *RemotePolicy {
	return &RemotePolicy{
		Client:      openai.NewClient(option.WithAPIKey(apiKey)),
		Model:       model,
		Temperature: temperature,
		Strict:      strict,
		limiter:     rate.NewLimiter(rate.Every(time.Second), 2),
	}
}

// NewLocalPolicy builds a RemotePolicy against a self-hosted
// OpenAI-compatible completion server (vLLM, SGLang's OpenAI shim, and
// similar), used during RL training when a hosted model is too slow or
// too expensive to query every step.
func NewLocalPolicy(baseURL, model string, temperature *float64) *RemotePolicy {
	return &RemotePolicy{
		Client:      openai.NewClient(option.WithBaseURL(baseURL), option.WithAPIKey("local")),
		Model:       model,
		Temperature: temperature,
		Strict:      false,
		limiter:     rate.NewLimiter(rate.Every(200*time.Millisecond), 4),
	}
}

func (p *RemotePolicy) ChooseAction(ctx context.Context, seed *scenario.Seed, attackerState string, agentAction map[string]any, attackerContext map[string]any) (Decision, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return Decision{}, err
	}

	allowed := AllowedActionsForState(attackerState, seed)
	userInput := map[string]any{
		"attacker_state":      attackerState,
		"allowed_actions":     allowed,
		"action_schema":       ActionSchemaForState(attackerState, seed),
		"entities":            seed.Entities,
		"recent_agent_action": agentAction,
		"attacker_context":    orEmpty(attackerContext),
	}
	userJSON, err := jsonutil.Canonical(userInput)
	if err != nil {
		return Decision{}, fmt.Errorf("attacker: encode request: %w", err)
	}

	params := openai.ChatCompletionNewParams{
		Model: p.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(AttackerSystemPrompt),
			openai.UserMessage(string(userJSON)),
		},
	}
	if p.Temperature != nil {
		params.Temperature = openai.Float(*p.Temperature)
	}

	completion, err := p.Client.Chat.Completions.New(ctx, params)
	if err != nil && p.Temperature != nil {
		// Some OpenAI-compatible endpoints reject a custom temperature;
		// retry once against the provider's default.
		retryParams := params
		retryParams.Temperature = openai.Float(1.0)
		completion, err = p.Client.Chat.Completions.New(ctx, retryParams)
	}
	if err != nil {
		return Decision{}, fmt.Errorf("attacker: completion request: %w", err)
	}

	text := ""
	if len(completion.Choices) > 0 {
		text = completion.Choices[0].Message.Content
	}

	data, err := parseAttackerJSON(text)
	if err != nil {
		if p.Strict {
			return Decision{}, &StrictError{Reason: "attacker_invalid_json"}
		}
		return Decision{ActionType: "no_op", Params: map[string]any{}, Rationale: "invalid_json"}, nil
	}
	return decisionFromJSON(data), nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
