package scenario

import "testing"

func validSeed() *Seed {
	return &Seed{
		ScenarioID:      "sc-001",
		PatientZeroHost: "h-001",
		CompromisedUser: "u-001",
		AttackerDomain:  "evil-mail.com",
		DataTarget:      "d-001",
		Entities: Entities{
			Hosts:       []Host{{HostID: "h-001"}, {HostID: "h-002"}},
			Users:       []User{{UserID: "u-001"}},
			Domains:     []Domain{{Domain: "evil-mail.com", DomainType: "attacker"}},
			DataTargets: []DataTarget{{TargetID: "d-001"}},
		},
		SeedArtifacts: SeedArtifacts{
			Emails: []Email{{EmailID: "email-001"}},
			LogTemplates: []LogTemplate{
				{TemplateID: "tpl-auth-1", Table: "auth_logs"},
				{TemplateID: "tpl-alert-1", Table: "alerts"},
			},
		},
		AttackPlan: AttackPlan{
			PhishingEmailID: "email-001",
			CredentialsUsed: CredentialsUsed{UserID: "u-001"},
			LateralPath:     []LateralHop{{SrcHost: "h-001", DstHost: "h-002"}},
			DataAccess:      DataAccess{TargetID: "d-001"},
			Exfiltration:    Exfiltration{DestinationDomain: "evil-mail.com"},
			Timeline: []TimelineStep{
				{Step: 0, Artifacts: []Artifact{
					{ArtifactType: "email", ArtifactID: "email-001"},
					{ArtifactType: "log_template", ArtifactID: "tpl-auth-1"},
					{ArtifactType: "alert", ArtifactID: "tpl-alert-1"},
				}},
			},
		},
	}
}

func TestValidateReferential_ValidSeedHasNoErrors(t *testing.T) {
	errs := ValidateReferential(validSeed())
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestValidateReferential_UnknownPatientZeroHost(t *testing.T) {
	seed := validSeed()
	seed.PatientZeroHost = "h-999"

	errs := ValidateReferential(seed)
	assertContains(t, errs, "patient_zero_host not in entities.hosts")
}

func TestValidateReferential_UnknownPhishingEmail(t *testing.T) {
	seed := validSeed()
	seed.AttackPlan.PhishingEmailID = "email-999"

	errs := ValidateReferential(seed)
	assertContains(t, errs, "attack_plan.phishing_email_id not in seed_artifacts.emails")
}

func TestValidateReferential_AlertTemplateWrongTable(t *testing.T) {
	seed := validSeed()
	seed.AttackPlan.Timeline[0].Artifacts[2] = Artifact{ArtifactType: "alert", ArtifactID: "tpl-auth-1"}

	errs := ValidateReferential(seed)
	assertContains(t, errs, "timeline artifact alert must reference log_template with table=alerts")
}

func TestValidateReferential_VariantActionTypeNotAllowed(t *testing.T) {
	seed := validSeed()
	seed.AttackPlan.Timeline[0].Artifacts[0].VariantActionType = "isolate_host"

	errs := ValidateReferential(seed)
	assertContains(t, errs, "timeline artifact variant_action_type not allowed: isolate_host")
}

func TestValidateReferential_DuplicateInjectionID(t *testing.T) {
	seed := validSeed()
	seed.PromptInjections = []PromptInjectionPayload{
		{InjectionID: "inj-1", Surface: "email"},
		{InjectionID: "inj-1", Surface: "email"},
	}
	seed.SeedArtifacts.Emails = append(seed.SeedArtifacts.Emails, Email{EmailID: "email-inj", InjectionID: "inj-1"})

	errs := ValidateReferential(seed)
	assertContains(t, errs, "prompt_injection_payloads injection_id must be unique")
}

func TestValidateReferential_AuthLogInjectionExpectsEvidenceID(t *testing.T) {
	seed := validSeed()
	seed.SeedArtifacts.LogTemplates[0].InjectionID = "inj-auth"
	seed.PromptInjections = []PromptInjectionPayload{
		{InjectionID: "inj-auth", Surface: "log", EvidenceIDs: []string{"wrong-id"}},
	}

	errs := ValidateReferential(seed)
	assertContains(t, errs, "log injection evidence_ids missing expected row id")
}

func TestValidateReferential_AuthLogInjectionCorrectEvidenceID(t *testing.T) {
	seed := validSeed()
	seed.SeedArtifacts.LogTemplates[0].InjectionID = "inj-auth"
	seed.PromptInjections = []PromptInjectionPayload{
		{InjectionID: "inj-auth", Surface: "log", EvidenceIDs: []string{"auth-sc-001-0"}},
	}

	errs := ValidateReferential(seed)
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestValidateReferential_UnrecognizedLogTemplateTable(t *testing.T) {
	seed := validSeed()
	seed.SeedArtifacts.LogTemplates = append(seed.SeedArtifacts.LogTemplates, LogTemplate{TemplateID: "tpl-x", Table: "bogus"})

	errs := ValidateReferential(seed)
	assertContains(t, errs, "log_template table not recognized: bogus")
}

func assertContains(t *testing.T, errs []string, want string) {
	t.Helper()
	for _, e := range errs {
		if e == want {
			return
		}
	}
	t.Fatalf("expected errors to contain %q, got %v", want, errs)
}
