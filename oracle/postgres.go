package oracle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

var (
	// ErrEmptyExpression is returned for a blank SQL expression
	ErrEmptyExpression = errors.New("sql expression cannot be empty")

	// ErrMultipleStatements is returned when an expression contains ';'. This
	// catches statement chaining by mistake only. An expression can still close
	// the surrounding parentheses, so the read-only transaction and the
	// statement timeout are what contain caller-supplied SQL.
	ErrMultipleStatements = errors.New("sql expression must be a single expression")
)

// PostgresEvaluator evaluates SQL conditions against PostgreSQL. Each
// expression runs as SELECT (<expr>)::boolean in its own read-only
// transaction. The context id is bound as $1 when the expression uses it.
//
// Expressions are trusted rule-author input. Callers exposing
// EvaluateCondition over a network must authenticate requests first.
type PostgresEvaluator struct {
	db               *sql.DB
	statementTimeout time.Duration
}

// Open connects to databaseURL and verifies the connection
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// NewPostgresEvaluator creates an evaluator. A zero statementTimeout leaves
// the server default in place.
func NewPostgresEvaluator(db *sql.DB, statementTimeout time.Duration) *PostgresEvaluator {
	return &PostgresEvaluator{db: db, statementTimeout: statementTimeout}
}

// Ping reports whether the database is reachable
func (e *PostgresEvaluator) Ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

// EvaluateCondition runs sqlExpression and returns its boolean value. NULL is false.
func (e *PostgresEvaluator) EvaluateCondition(ctx context.Context, sqlExpression, contextID string) (bool, error) {
	expr := strings.TrimSpace(sqlExpression)
	if expr == "" {
		return false, ErrEmptyExpression
	}
	if strings.Contains(expr, ";") {
		return false, ErrMultipleStatements
	}

	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if e.statementTimeout > 0 {
		// SET does not take bind parameters
		stmt := fmt.Sprintf("SET LOCAL statement_timeout = %d", e.statementTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return false, fmt.Errorf("failed to set statement timeout: %w", err)
		}
	}

	query := "SELECT (" + expr + ")::boolean"
	var args []any
	if strings.Contains(expr, "$1") {
		args = append(args, contextID)
	}

	var result sql.NullBool
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&result); err != nil {
		return false, fmt.Errorf("failed to evaluate sql expression: %w", err)
	}
	return result.Valid && result.Bool, nil
}
