package scenario

import "fmt"

var allowedVariantActions = map[string]struct{}{
	"lateral_move":     {},
	"lateral_move_alt": {},
	"exfiltrate":       {},
	"exfiltrate_alt":   {},
}

var logTables = map[string]struct{}{
	"email_logs": {}, "auth_logs": {}, "netflow": {}, "process_events": {}, "alerts": {},
}

type artifactEvent struct {
	step     int
	artifact Artifact
}

// ValidateReferential checks a seed's cross-references are internally
// consistent: every entity/artifact/template ID a plan or graph names
// actually exists, every log_template names a recognized table, and
// every planted prompt-injection payload points at evidence that will
// actually be emitted under the ID the defender would see it as.
//
// It returns one message per violation found; a nil/empty result means
// the seed is referentially sound.
func ValidateReferential(seed *Seed) []string {
	var errs []string
	note := func(format string, args ...any) { errs = append(errs, fmt.Sprintf(format, args...)) }

	users := setOfUsers(seed.Entities.Users)
	hosts := setOfHosts(seed.Entities.Hosts)
	domains := setOfDomains(seed.Entities.Domains)
	targets := setOfTargets(seed.Entities.DataTargets)
	emails := setOfEmails(seed.SeedArtifacts.Emails)
	templates := make(map[string]LogTemplate, len(seed.SeedArtifacts.LogTemplates))
	for _, t := range seed.SeedArtifacts.LogTemplates {
		templates[t.TemplateID] = t
	}

	if _, ok := hosts[seed.PatientZeroHost]; !ok {
		note("patient_zero_host not in entities.hosts")
	}
	if _, ok := users[seed.CompromisedUser]; !ok {
		note("compromised_user not in entities.users")
	}
	if _, ok := domains[seed.AttackerDomain]; !ok {
		note("attacker_domain not in entities.domains")
	}
	if _, ok := targets[seed.DataTarget]; !ok {
		note("data_target not in entities.data_targets")
	}

	ap := seed.AttackPlan
	if _, ok := emails[ap.PhishingEmailID]; !ok {
		note("attack_plan.phishing_email_id not in seed_artifacts.emails")
	}
	if _, ok := users[ap.CredentialsUsed.UserID]; !ok {
		note("attack_plan.credentials_used.user_id not in entities.users")
	}
	for _, hop := range ap.LateralPath {
		if _, ok := hosts[hop.SrcHost]; !ok {
			note("attack_plan.lateral_path.src_host not in entities.hosts")
		}
		if _, ok := hosts[hop.DstHost]; !ok {
			note("attack_plan.lateral_path.dst_host not in entities.hosts")
		}
	}
	if _, ok := targets[ap.DataAccess.TargetID]; !ok {
		note("attack_plan.data_access.target_id not in entities.data_targets")
	}
	if _, ok := domains[ap.Exfiltration.DestinationDomain]; !ok {
		note("attack_plan.exfiltration.destination_domain not in entities.domains")
	}

	var events []artifactEvent
	for _, item := range ap.Timeline {
		for _, art := range item.Artifacts {
			events = append(events, artifactEvent{step: item.Step, artifact: art})
		}
	}
	if seed.AttackGraph != nil {
		for _, art := range seed.AttackGraph.InitialArtifacts {
			events = append(events, artifactEvent{step: art.Step, artifact: art})
		}
	}

	timelineSteps := map[string]int{}
	for _, ev := range events {
		art := ev.artifact
		switch art.ArtifactType {
		case "email":
			if _, ok := emails[art.ArtifactID]; !ok {
				note("timeline artifact email not in seed_artifacts.emails")
			}
		case "log_template":
			if _, ok := templates[art.ArtifactID]; !ok {
				note("timeline artifact log_template not in seed_artifacts.log_templates")
			}
		case "alert":
			t, ok := templates[art.ArtifactID]
			if !ok {
				note("timeline artifact alert not in seed_artifacts.log_templates")
			} else if t.Table != "alerts" {
				note("timeline artifact alert must reference log_template with table=alerts")
			}
		}
		if art.VariantActionType != "" {
			if _, ok := allowedVariantActions[art.VariantActionType]; !ok {
				note("timeline artifact variant_action_type not allowed: %s", art.VariantActionType)
			}
		}
		if art.ArtifactType == "log_template" || art.ArtifactType == "alert" {
			if _, seen := timelineSteps[art.ArtifactID]; !seen {
				timelineSteps[art.ArtifactID] = ev.step
			}
		}
	}

	injectionIDs := map[string]struct{}{}
	duplicate := false
	for _, p := range seed.PromptInjections {
		if _, ok := injectionIDs[p.InjectionID]; ok {
			duplicate = true
		}
		injectionIDs[p.InjectionID] = struct{}{}
	}
	if duplicate {
		note("prompt_injection_payloads injection_id must be unique")
	}

	templateByInjection := map[string]LogTemplate{}
	for _, t := range seed.SeedArtifacts.LogTemplates {
		if t.InjectionID != "" {
			templateByInjection[t.InjectionID] = t
		}
	}

	for _, p := range seed.PromptInjections {
		switch p.Surface {
		case "email":
			found := false
			for _, e := range seed.SeedArtifacts.Emails {
				if e.InjectionID == p.InjectionID {
					found = true
					break
				}
			}
			if !found {
				note("email injection_id not referenced by any seed_artifacts.emails")
			}
		case "alert":
			found := false
			for _, t := range seed.SeedArtifacts.LogTemplates {
				if t.InjectionID == p.InjectionID && t.Table == "alerts" {
					found = true
					break
				}
			}
			if !found {
				note("alert injection_id not referenced by any alerts log_template")
				continue
			}
			template := templateByInjection[p.InjectionID]
			step, ok := timelineSteps[template.TemplateID]
			if ok {
				expected := fmt.Sprintf("alert-%s-%d", seed.ScenarioID, step)
				if !containsString(p.EvidenceIDs, expected) {
					note("alert injection evidence_ids missing expected alert id")
				}
			}
		case "log":
			template, ok := templateByInjection[p.InjectionID]
			if !ok {
				note("log injection_id not referenced by any log_template")
				continue
			}
			switch template.Table {
			case "auth_logs", "netflow", "process_events":
			default:
				note("log injection_id must reference auth_logs/netflow/process_events template")
			}
			step, ok := timelineSteps[template.TemplateID]
			if !ok {
				note("log injection template_id not present in timeline")
				continue
			}
			var expected string
			switch template.Table {
			case "auth_logs":
				expected = fmt.Sprintf("auth-%s-%d", seed.ScenarioID, step)
			case "netflow":
				expected = fmt.Sprintf("flow-%s-%d", seed.ScenarioID, step)
			case "process_events":
				expected = fmt.Sprintf("proc-%s-%d", seed.ScenarioID, step)
			}
			if expected != "" && !containsString(p.EvidenceIDs, expected) {
				note("log injection evidence_ids missing expected row id")
			}
		}
	}

	for _, t := range seed.SeedArtifacts.LogTemplates {
		if _, ok := logTables[t.Table]; !ok {
			note("log_template table not recognized: %s", t.Table)
		}
	}

	return errs
}

func setOfUsers(list []User) map[string]struct{} {
	out := make(map[string]struct{}, len(list))
	for _, u := range list {
		out[u.UserID] = struct{}{}
	}
	return out
}

func setOfHosts(list []Host) map[string]struct{} {
	out := make(map[string]struct{}, len(list))
	for _, h := range list {
		out[h.HostID] = struct{}{}
	}
	return out
}

func setOfDomains(list []Domain) map[string]struct{} {
	out := make(map[string]struct{}, len(list))
	for _, d := range list {
		out[d.Domain] = struct{}{}
	}
	return out
}

func setOfTargets(list []DataTarget) map[string]struct{} {
	out := make(map[string]struct{}, len(list))
	for _, t := range list {
		out[t.TargetID] = struct{}{}
	}
	return out
}

func setOfEmails(list []Email) map[string]struct{} {
	out := make(map[string]struct{}, len(list))
	for _, e := range list {
		out[e.EmailID] = struct{}{}
	}
	return out
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
