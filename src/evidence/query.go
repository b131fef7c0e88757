package evidence

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// EmailsForStep lists email_id values logged at the given step.
func (s *Store) EmailsForStep(ctx context.Context, scenarioID string, step int) ([]string, error) {
	return s.idsForStep(ctx, "email_logs", "email_id", scenarioID, step)
}

// AlertsForStep lists alert_id values logged at the given step.
func (s *Store) AlertsForStep(ctx context.Context, scenarioID string, step int) ([]string, error) {
	return s.idsForStep(ctx, "alerts", "alert_id", scenarioID, step)
}

func (s *Store) idsForStep(ctx context.Context, table, idColumn, scenarioID string, step int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE scenario_id = ? AND step = ?", idColumn, table),
		scenarioID, step,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FetchEmail returns the email_logs row for emailID, or nil if not found.
func (s *Store) FetchEmail(ctx context.Context, scenarioID, emailID string) (map[string]any, error) {
	rows, err := s.QueryLogs(ctx, "SELECT * FROM email_logs WHERE scenario_id = ? AND email_id = ?", scenarioID, emailID)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// FetchAlert returns the alerts row for alertID, or nil if not found.
func (s *Store) FetchAlert(ctx context.Context, scenarioID, alertID string) (map[string]any, error) {
	rows, err := s.QueryLogs(ctx, "SELECT * FROM alerts WHERE scenario_id = ? AND alert_id = ?", scenarioID, alertID)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// IsReadOnlySelect reports whether sql, trimmed and lowercased, starts
// with "select" — the only statements the query_logs defender action is
// allowed to run.
func IsReadOnlySelect(sqlText string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(sqlText)), "select")
}

// QueryLogs runs a read-only SELECT and returns each row as a column-name
// keyed map, the same shape defender actions see in their action_result.
func (s *Store) QueryLogs(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		pointers := make([]any, len(cols))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

var alertFieldPattern = regexp.MustCompile(`([a-zA-Z_]+)=([a-zA-Z0-9_.:@-]+)`)

// ParseAlertFields extracts key=value pairs from a free-text alert
// message for structured access, mirroring the query syntax seeds embed
// in log templates.
func ParseAlertFields(message string) map[string]string {
	if message == "" {
		return map[string]string{}
	}
	parsed := make(map[string]string)
	for _, m := range alertFieldPattern.FindAllStringSubmatch(message, -1) {
		parsed[m[1]] = m[2]
	}
	return parsed
}

// ContentEvidenceIDsFromRows extracts the row-id columns (email_id,
// alert_id, auth_id, flow_id, event_id) present in query_logs results, the
// defender's exposure to those specific evidence rows.
func ContentEvidenceIDsFromRows(rows []map[string]any) []string {
	var ids []string
	for _, row := range rows {
		for _, col := range []string{"email_id", "alert_id", "auth_id", "flow_id", "event_id"} {
			if v, ok := row[col]; ok && v != nil {
				ids = append(ids, fmt.Sprintf("%v", v))
			}
		}
	}
	return ids
}
