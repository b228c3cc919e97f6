// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/algolend/kestrel/internal/domain"
)

var ErrInvalidInput = errors.New("invalid input")

// SQLStore implements domain.RecordStore using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// New creates a new record store based on configuration.
func New(cfg domain.RepositoryConfig) (domain.RecordStore, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	store := &SQLStore{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func (s *SQLStore) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := s.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// AppendRecord inserts a completed decision record. Records are append-only:
// there is no update path, and duplicate IDs fail on the primary key.
func (s *SQLStore) AppendRecord(ctx context.Context, rec *domain.DecisionRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("%w: record ID is required", ErrInvalidInput)
	}
	if rec.IDNumber == "" {
		return fmt.Errorf("%w: record ID number is required", ErrInvalidInput)
	}

	riskFlags, _ := json.Marshal(rec.RiskFlags)
	report, _ := json.Marshal(rec.Report)
	breakdown, _ := json.Marshal(rec.Breakdown)
	exposure, _ := json.Marshal(rec.Exposure)
	metadata, _ := json.Marshal(rec.Metadata)

	mockMode := 0
	if rec.MockMode {
		mockMode = 1
	}

	query := `
		INSERT INTO decision_records (
			id, user_id, application_id, report_reference, bureau_name,
			first_name, last_name, id_number, credit_score, score_band,
			risk_category, recommendation, recommendation_reason, risk_flags,
			report, breakdown, exposure, raw_payload, mock_mode, status,
			metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		rec.ID, rec.UserID, rec.ApplicationID, rec.ReportReference, rec.BureauName,
		rec.FirstName, rec.LastName, rec.IDNumber, rec.CreditScore, string(rec.ScoreBand),
		rec.RiskCategory, string(rec.Recommendation), rec.RecommendationReason, string(riskFlags),
		string(report), string(breakdown), string(exposure), rec.RawPayload, mockMode, rec.Status,
		string(metadata), rec.CreatedAt,
	)
	return err
}

// GetRecord retrieves a decision record by ID.
func (s *SQLStore) GetRecord(ctx context.Context, recordID string) (*domain.DecisionRecord, error) {
	if recordID == "" {
		return nil, fmt.Errorf("%w: record ID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, user_id, application_id, report_reference, bureau_name,
			   first_name, last_name, id_number, credit_score, score_band,
			   risk_category, recommendation, recommendation_reason, risk_flags,
			   report, breakdown, exposure, raw_payload, mock_mode, status,
			   metadata, created_at
		FROM decision_records
		WHERE id = ?
	`

	var rec domain.DecisionRecord
	var scoreBand, recommendation string
	var riskFlags, report, breakdown, exposure, metadata string
	var mockMode int

	err := s.db.QueryRowContext(ctx, s.rebind(query), recordID).Scan(
		&rec.ID, &rec.UserID, &rec.ApplicationID, &rec.ReportReference, &rec.BureauName,
		&rec.FirstName, &rec.LastName, &rec.IDNumber, &rec.CreditScore, &scoreBand,
		&rec.RiskCategory, &recommendation, &rec.RecommendationReason, &riskFlags,
		&report, &breakdown, &exposure, &rec.RawPayload, &mockMode, &rec.Status,
		&metadata, &rec.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rec.ScoreBand = domain.RiskType(scoreBand)
	rec.Recommendation = domain.Recommendation(recommendation)
	rec.MockMode = mockMode == 1

	json.Unmarshal([]byte(riskFlags), &rec.RiskFlags)
	json.Unmarshal([]byte(report), &rec.Report)
	json.Unmarshal([]byte(breakdown), &rec.Breakdown)
	json.Unmarshal([]byte(exposure), &rec.Exposure)
	json.Unmarshal([]byte(metadata), &rec.Metadata)

	return &rec, nil
}

// ListRecordsByUser retrieves the most recent decision summaries for a user.
func (s *SQLStore) ListRecordsByUser(ctx context.Context, userID string, limit int) ([]*domain.DecisionSummary, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", ErrInvalidInput)
	}
	return s.listSummaries(ctx, "user_id", userID, limit)
}

// ListRecordsByIDNumber retrieves the most recent decision summaries for an
// identity number, across users.
func (s *SQLStore) ListRecordsByIDNumber(ctx context.Context, idNumber string, limit int) ([]*domain.DecisionSummary, error) {
	if idNumber == "" {
		return nil, fmt.Errorf("%w: ID number is required", ErrInvalidInput)
	}
	return s.listSummaries(ctx, "id_number", idNumber, limit)
}

func (s *SQLStore) listSummaries(ctx context.Context, column, value string, limit int) ([]*domain.DecisionSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	query := fmt.Sprintf(`
		SELECT id, application_id, id_number, credit_score, risk_category, recommendation, created_at
		FROM decision_records
		WHERE %s = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, column)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), value, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []*domain.DecisionSummary
	for rows.Next() {
		var sum domain.DecisionSummary
		var recommendation string

		if err := rows.Scan(
			&sum.ID, &sum.ApplicationID, &sum.IDNumber, &sum.CreditScore,
			&sum.RiskCategory, &recommendation, &sum.CreatedAt,
		); err != nil {
			return nil, err
		}

		sum.Recommendation = domain.Recommendation(recommendation)
		summaries = append(summaries, &sum)
	}

	return summaries, rows.Err()
}

// SaveFlagRule stores or updates a flag rule.
func (s *SQLStore) SaveFlagRule(ctx context.Context, rule *domain.FlagRule) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule ID is required", ErrInvalidInput)
	}
	if rule.Expression == "" {
		return fmt.Errorf("%w: rule expression is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO flag_rules (
			id, name, description, expression, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		rule.ID, rule.Name, rule.Description, rule.Expression, enabled,
		now, now,
	)
	return err
}

// GetFlagRule retrieves a flag rule by ID.
func (s *SQLStore) GetFlagRule(ctx context.Context, ruleID string) (*domain.FlagRule, error) {
	if ruleID == "" {
		return nil, fmt.Errorf("%w: rule ID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, name, description, expression, enabled
		FROM flag_rules
		WHERE id = ?
	`

	var rule domain.FlagRule
	var enabled int

	err := s.db.QueryRowContext(ctx, s.rebind(query), ruleID).Scan(
		&rule.ID, &rule.Name, &rule.Description, &rule.Expression, &enabled,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRuleNotFound
	}
	if err != nil {
		return nil, err
	}

	rule.Enabled = enabled == 1
	return &rule, nil
}

// ListFlagRules retrieves all flag rules, enabled or not, ordered by ID so
// callers see the same evaluation order the flag engine uses.
func (s *SQLStore) ListFlagRules(ctx context.Context) ([]*domain.FlagRule, error) {
	query := `
		SELECT id, name, description, expression, enabled
		FROM flag_rules
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, s.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.FlagRule
	for rows.Next() {
		var rule domain.FlagRule
		var enabled int

		if err := rows.Scan(
			&rule.ID, &rule.Name, &rule.Description, &rule.Expression, &enabled,
		); err != nil {
			return nil, err
		}

		rule.Enabled = enabled == 1
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// DeleteFlagRule removes a flag rule.
func (s *SQLStore) DeleteFlagRule(ctx context.Context, ruleID string) error {
	if ruleID == "" {
		return fmt.Errorf("%w: rule ID is required", ErrInvalidInput)
	}

	query := `DELETE FROM flag_rules WHERE id = ?`

	result, err := s.db.ExecContext(ctx, s.rebind(query), ruleID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrRuleNotFound
	}

	return nil
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
