// Package evidence compiles a seed's emails, log templates, and planted
// prompt-injection payloads into a per-episode SQLite database, and
// answers the defender's read-only investigation queries against it.
package evidence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/opensec-sim/irsim/src/scenario"
)

var defaultBaseTime = time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)

// Store is a per-episode evidence database. A Store is created fresh for
// each episode from the episode's seed and discarded when the episode ends.
type Store struct {
	db *sql.DB
}

// Open creates (or truncates, if present) the SQLite file at dbPath,
// initializes its schema, and compiles seed into it.
func Open(ctx context.Context, dbPath string, seed *scenario.Seed) (*Store, error) {
	if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale evidence db: %w", err)
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open evidence db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init evidence schema: %w", err)
	}
	store := &Store{db: db}
	if err := store.compile(ctx, seed); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying SQLite connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func baseTime(seed *scenario.Seed) time.Time {
	if seed.Metadata.CreatedAt == "" {
		return defaultBaseTime
	}
	if t, err := time.Parse(time.RFC3339, seed.Metadata.CreatedAt); err == nil {
		return t.UTC()
	}
	return defaultBaseTime
}

func stepTime(base time.Time, step int) string {
	return base.Add(time.Duration(step) * time.Minute).Truncate(time.Second).Format("2006-01-02T15:04:05Z")
}

func (s *Store) compile(ctx context.Context, seed *scenario.Seed) error {
	if err := s.insertPromptInjections(ctx, seed); err != nil {
		return err
	}

	templates := make(map[string]scenario.LogTemplate, len(seed.SeedArtifacts.LogTemplates))
	for _, t := range seed.SeedArtifacts.LogTemplates {
		templates[t.TemplateID] = t
	}

	if seed.AttackGraph != nil {
		for _, art := range seed.AttackGraph.InitialArtifacts {
			if err := s.emitArtifact(ctx, seed, art.Step, art, templates, true); err != nil {
				return err
			}
		}
		return nil
	}

	for _, item := range seed.AttackPlan.Timeline {
		for _, art := range item.Artifacts {
			if err := s.emitArtifact(ctx, seed, item.Step, art, templates, false); err != nil {
				return err
			}
		}
	}
	return nil
}

// EmitArtifact re-exposes emitArtifact for the episode controller, which
// emits further artifacts mid-episode as the attacker's matched graph
// action or legacy timeline variant dictates. allowVariant bypasses the
// variant-action gate the way the graph-driven and mid-episode legacy
// emission paths both need to.
func (s *Store) EmitArtifact(ctx context.Context, seed *scenario.Seed, step int, art scenario.Artifact, templates map[string]scenario.LogTemplate) error {
	return s.emitArtifact(ctx, seed, step, art, templates, true)
}

// Templates builds the template_id lookup EmitArtifact callers need.
func Templates(seed *scenario.Seed) map[string]scenario.LogTemplate {
	out := make(map[string]scenario.LogTemplate, len(seed.SeedArtifacts.LogTemplates))
	for _, t := range seed.SeedArtifacts.LogTemplates {
		out[t.TemplateID] = t
	}
	return out
}

func (s *Store) emitArtifact(ctx context.Context, seed *scenario.Seed, step int, art scenario.Artifact, templates map[string]scenario.LogTemplate, allowVariant bool) error {
	if art.VariantActionType != "" && !allowVariant {
		return nil
	}
	switch art.ArtifactType {
	case "email":
		return s.insertEmail(ctx, seed, art.ArtifactID, step)
	case "log_template", "alert":
		template, ok := templates[art.ArtifactID]
		if !ok {
			return fmt.Errorf("evidence: unknown log template %q", art.ArtifactID)
		}
		return s.insertFromTemplate(ctx, seed, step, template)
	}
	return nil
}

func (s *Store) insertFromTemplate(ctx context.Context, seed *scenario.Seed, step int, template scenario.LogTemplate) error {
	switch template.Table {
	case "auth_logs":
		return s.insertAuth(ctx, seed, step, template.TemplateBody, template.TrustTier, template.Source)
	case "netflow":
		return s.insertNetflow(ctx, seed, step, template.TemplateBody, template.TrustTier, template.Source)
	case "process_events":
		return s.insertProcess(ctx, seed, step, template.TemplateBody, template.TrustTier, template.Source)
	case "alerts":
		return s.insertAlert(ctx, seed, step, template.TemplateBody, template.InjectionID, template.TrustTier, template.Source)
	case "email_logs":
		return s.insertEmail(ctx, seed, template.TemplateID, step)
	}
	return fmt.Errorf("evidence: unknown log table %q", template.Table)
}

func (s *Store) insertEmail(ctx context.Context, seed *scenario.Seed, emailID string, step int) error {
	var email *scenario.Email
	for i := range seed.SeedArtifacts.Emails {
		if seed.SeedArtifacts.Emails[i].EmailID == emailID {
			email = &seed.SeedArtifacts.Emails[i]
			break
		}
	}
	if email == nil {
		return fmt.Errorf("evidence: unknown email %q", emailID)
	}
	isPhish := 0
	if email.InjectionID != "" {
		isPhish = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO email_logs
		(email_id, scenario_id, step, sender, recipient, subject, body, is_phish, injection_id, trust_tier, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		email.EmailID, seed.ScenarioID, step, email.Sender, email.Recipient, email.Subject, email.Body,
		isPhish, nullIfEmpty(email.InjectionID), nullIfEmpty(email.TrustTier), nullIfEmpty(email.Source),
		stepTime(baseTime(seed), step),
	)
	return err
}

func (s *Store) insertAuth(ctx context.Context, seed *scenario.Seed, step int, templateBody, trustTier, source string) error {
	kv := parseKV(templateBody)
	success := 0
	if strings.Contains(strings.ToLower(templateBody), "success") {
		success = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_logs
		(auth_id, scenario_id, step, user_id, host_id, source_ip, auth_type, success, trust_tier, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fmt.Sprintf("auth-%s-%d", seed.ScenarioID, step), seed.ScenarioID, step,
		kvGet(kv, "user", seed.CompromisedUser), kvGet(kv, "host", seed.PatientZeroHost),
		nullIfEmpty(kv["src_ip"]), kvGet(kv, "method", "password"), success,
		nullIfEmpty(trustTier), nullIfEmpty(source), stepTime(baseTime(seed), step),
	)
	return err
}

func (s *Store) insertNetflow(ctx context.Context, seed *scenario.Seed, step int, templateBody, trustTier, source string) error {
	kv := parseKV(templateBody)
	bytesSent := 0
	if n, err := strconv.Atoi(kvGet(kv, "bytes", "0")); err == nil {
		bytesSent = n
	}
	var port any
	if n, err := strconv.Atoi(kvGet(kv, "port", "0")); err == nil && kv["port"] != "" {
		port = n
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO netflow
		(flow_id, scenario_id, step, src_host, dst_host, dst_domain, dst_port, protocol, bytes_sent, bytes_received, trust_tier, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fmt.Sprintf("flow-%s-%d", seed.ScenarioID, step), seed.ScenarioID, step,
		kvGet(kv, "src", seed.PatientZeroHost), nullIfEmpty(kv["dst"]), nullIfEmpty(kv["dst_domain"]),
		port, nullIfEmpty(kv["proto"]), bytesSent, 0, nullIfEmpty(trustTier), nullIfEmpty(source),
		stepTime(baseTime(seed), step),
	)
	return err
}

func (s *Store) insertProcess(ctx context.Context, seed *scenario.Seed, step int, templateBody, trustTier, source string) error {
	kv := parseKV(templateBody)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO process_events
		(event_id, scenario_id, step, host_id, user_id, process_name, command_line, parent_process, trust_tier, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fmt.Sprintf("proc-%s-%d", seed.ScenarioID, step), seed.ScenarioID, step,
		kvGet(kv, "host", seed.PatientZeroHost), kvGet(kv, "user", seed.CompromisedUser),
		kvGet(kv, "process", "unknown"), templateBody, nullIfEmpty(kv["parent"]),
		nullIfEmpty(trustTier), nullIfEmpty(source), stepTime(baseTime(seed), step),
	)
	return err
}

func (s *Store) insertAlert(ctx context.Context, seed *scenario.Seed, step int, templateBody, injectionID, trustTier, source string) error {
	kv := parseKV(templateBody)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts
		(alert_id, scenario_id, step, alert_type, severity, message, related_log_id, injection_id, trust_tier, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fmt.Sprintf("alert-%s-%d", seed.ScenarioID, step), seed.ScenarioID, step,
		kvGet(kv, "type", "unknown"), kvGet(kv, "severity", "medium"), templateBody, nil,
		nullIfEmpty(injectionID), nullIfEmpty(trustTier), nullIfEmpty(source), stepTime(baseTime(seed), step),
	)
	return err
}

func (s *Store) insertPromptInjections(ctx context.Context, seed *scenario.Seed) error {
	for _, payload := range seed.PromptInjections {
		var evidenceJSON, targetParamsJSON any
		if payload.EvidenceIDs != nil {
			b, err := json.Marshal(payload.EvidenceIDs)
			if err != nil {
				return err
			}
			evidenceJSON = string(b)
		}
		if payload.TargetParams != nil {
			b, err := json.Marshal(payload.TargetParams)
			if err != nil {
				return err
			}
			targetParamsJSON = string(b)
		}
		violation := 0
		if payload.ExpectedViolation {
			violation = 1
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO prompt_injections
			(injection_id, scenario_id, surface, payload, expected_violation, target_action, target_params, evidence_ids, injection_type, objective, source)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			payload.InjectionID, seed.ScenarioID, payload.Surface, payload.Payload, violation,
			nullIfEmpty(payload.TargetAction), targetParamsJSON, evidenceJSON,
			nullIfEmpty(payload.InjectionType), nullIfEmpty(payload.Objective), nullIfEmpty(payload.Source),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
