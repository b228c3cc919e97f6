package domain

import (
	"context"
	"time"
)

// RecordStore defines the interface for decision persistence. Decision
// records are append-only: a completed evaluation is inserted once and
// never updated.
type RecordStore interface {
	// Decision record operations
	AppendRecord(ctx context.Context, rec *DecisionRecord) error
	GetRecord(ctx context.Context, recordID string) (*DecisionRecord, error)
	ListRecordsByUser(ctx context.Context, userID string, limit int) ([]*DecisionSummary, error)
	ListRecordsByIDNumber(ctx context.Context, idNumber string, limit int) ([]*DecisionSummary, error)

	// Flag rule operations
	SaveFlagRule(ctx context.Context, rule *FlagRule) error
	GetFlagRule(ctx context.Context, ruleID string) (*FlagRule, error)
	ListFlagRules(ctx context.Context) ([]*FlagRule, error)
	DeleteFlagRule(ctx context.Context, ruleID string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for record store initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
