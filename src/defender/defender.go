// Package defender applies the defender agent's chosen action each step:
// containment actions that mutate ContainmentState, and read-only
// evidence-investigation actions answered against an evidence.Store.
package defender

import (
	"context"
	"strings"

	"github.com/opensec-sim/irsim/src/evidence"
)

// AgentAction is one action the defender agent submits for a step.
// Params is intentionally untyped: each action type interprets its own
// subset, and unrecognized keys are ignored rather than rejected.
type AgentAction struct {
	ActionType string         `json:"action_type"`
	Params     map[string]any `json:"params"`
}

// AsJSON is the canonical-hashable, loggable representation of the
// action, mirroring AgentAction.model_dump() on the reference
// implementation.
func (a AgentAction) AsJSON() map[string]any {
	params := a.Params
	if params == nil {
		params = map[string]any{}
	}
	return map[string]any{"action_type": a.ActionType, "params": params}
}

func (a AgentAction) param(key string) string {
	if a.Params == nil {
		return ""
	}
	v, _ := a.Params[key].(string)
	return v
}

// ContainmentState is the defender's accumulated containment actions:
// every host isolated, domain blocked, and user reset so far. It is the
// authoritative record the attacker state machine and the scoring
// oracle both gate on.
type ContainmentState struct {
	IsolatedHosts []string `json:"isolated_hosts"`
	BlockedDomains []string `json:"blocked_domains"`
	ResetUsers    []string `json:"reset_users"`
}

func appendUnique(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, item := range list {
		if item == v {
			return list
		}
	}
	return append(list, v)
}

// ActionResult is the outcome of one defender action: whether it
// succeeded, a human-readable message (the action type on success), and
// any structured data the action produced.
type ActionResult struct {
	OK      bool           `json:"ok"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

// Apply executes action against containment and store, returning the
// result and the evidence row IDs its data actually exposed (for
// query_logs, fetch_email, fetch_alert — the exposure a prompt-injection
// surface needs to have been read to count).
func Apply(ctx context.Context, store *evidence.Store, scenarioID string, containment *ContainmentState, action AgentAction) (ActionResult, []string, error) {
	switch action.ActionType {
	case "isolate_host":
		hostID := action.param("host_id")
		containment.IsolatedHosts = appendUnique(containment.IsolatedHosts, hostID)
		return ActionResult{OK: true, Message: action.ActionType, Data: map[string]any{"isolated_host": hostID}}, nil, nil

	case "block_domain":
		domain := action.param("domain")
		containment.BlockedDomains = appendUnique(containment.BlockedDomains, domain)
		return ActionResult{OK: true, Message: action.ActionType, Data: map[string]any{"blocked_domain": domain}}, nil, nil

	case "reset_user":
		userID := action.param("user_id")
		containment.ResetUsers = appendUnique(containment.ResetUsers, userID)
		return ActionResult{OK: true, Message: action.ActionType, Data: map[string]any{"reset_user": userID}}, nil, nil

	case "query_logs":
		sqlText := action.param("sql")
		if !evidence.IsReadOnlySelect(sqlText) {
			return ActionResult{OK: false, Message: action.ActionType, Data: map[string]any{"error": "only SELECT queries are allowed"}}, nil, nil
		}
		rows, err := store.QueryLogs(ctx, sqlText)
		if err != nil {
			return ActionResult{OK: false, Message: action.ActionType, Data: map[string]any{"error": sanitizeSQLError(err)}}, nil, nil
		}
		return ActionResult{OK: true, Message: action.ActionType, Data: map[string]any{"rows": rows}}, evidence.ContentEvidenceIDsFromRows(rows), nil

	case "fetch_email":
		emailID := action.param("email_id")
		if emailID == "" {
			return ActionResult{OK: false, Message: action.ActionType, Data: map[string]any{"error": "email_id required"}}, nil, nil
		}
		email, err := store.FetchEmail(ctx, scenarioID, emailID)
		if err != nil {
			return ActionResult{}, nil, err
		}
		return ActionResult{OK: true, Message: action.ActionType, Data: map[string]any{"email_id": emailID, "email": email}}, []string{emailID}, nil

	case "fetch_alert":
		alertID := action.param("alert_id")
		if alertID == "" {
			return ActionResult{OK: false, Message: action.ActionType, Data: map[string]any{"error": "alert_id required"}}, nil, nil
		}
		alert, err := store.FetchAlert(ctx, scenarioID, alertID)
		if err != nil {
			return ActionResult{}, nil, err
		}
		var parsed map[string]string
		if alert != nil {
			if msg, _ := alert["message"].(string); msg != "" {
				parsed = evidence.ParseAlertFields(msg)
			}
		}
		return ActionResult{OK: true, Message: action.ActionType, Data: map[string]any{"alert_id": alertID, "alert": alert, "parsed": parsed}}, []string{alertID}, nil

	default:
		return ActionResult{OK: true, Message: action.ActionType, Data: map[string]any{}}, nil, nil
	}
}

func sanitizeSQLError(err error) string {
	msg := err.Error()
	if idx := strings.Index(msg, ":"); idx >= 0 {
		return strings.TrimSpace(msg[idx+1:])
	}
	return msg
}
