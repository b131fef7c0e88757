// Package attacker implements the kill-chain state machine, the attacker
// decision policy (mock or LLM-backed), and the content-addressed replay
// cache that makes a non-deterministic policy replayable.
package attacker

// Context accumulates everything the attacker has established about its
// own foothold over the course of an episode: which hosts/users it has
// compromised, its current operating position, and which capability
// gates (credentials, admin, staged data, persistence) it has cleared.
// It is distinct from ScenarioContext, which names the scenario's fixed
// ground-truth entities (patient zero, the compromised user, the
// attacker's C2 domain) independent of what the attacker has done.
type Context struct {
	CurrentHost         string   `json:"current_host,omitempty"`
	CurrentUser         string   `json:"current_user,omitempty"`
	CompromisedHosts    []string `json:"compromised_hosts,omitempty"`
	CompromisedUsers    []string `json:"compromised_users,omitempty"`
	CurrentTarget       string   `json:"current_target,omitempty"`
	CurrentExfilDomain  string   `json:"current_exfil_domain,omitempty"`
	HasCreds            bool     `json:"has_creds"`
	HasAdmin            bool     `json:"has_admin"`
	HasStage            bool     `json:"has_stage"`
	HasPersistence      bool     `json:"has_persistence"`
}

// RecordHost appends hostID to CompromisedHosts (if not already present)
// and makes it the current host. A no-op for an empty hostID.
func (c *Context) RecordHost(hostID string) {
	if hostID == "" {
		return
	}
	if !contains(c.CompromisedHosts, hostID) {
		c.CompromisedHosts = append(c.CompromisedHosts, hostID)
	}
	c.CurrentHost = hostID
}

// RecordUser appends userID to CompromisedUsers (if not already present)
// and makes it the current user. A no-op for an empty userID.
func (c *Context) RecordUser(userID string) {
	if userID == "" {
		return
	}
	if !contains(c.CompromisedUsers, userID) {
		c.CompromisedUsers = append(c.CompromisedUsers, userID)
	}
	c.CurrentUser = userID
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// ScenarioContext names the scenario's fixed ground-truth entities that
// containment actions can take effect against.
type ScenarioContext struct {
	AttackerDomain  string
	PatientZeroHost string
	CompromisedUser string
}

// Containment mirrors the defender's executed containment actions, read
// by the state machine to gate attacker progress.
type Containment struct {
	IsolatedHosts []string
	BlockedDomains []string
	ResetUsers     []string
}
