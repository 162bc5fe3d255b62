//go:build integration

package oracle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/liamcoop/formrules/rules"
)

// setupTestDB starts a PostgreSQL testcontainer and applies the fixture migrations
func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	connStr := fmt.Sprintf("postgres://postgres:password@%s:%s/testdb?sslmode=disable", host, port.Port())

	m, err := migrate.New("file://testdata/migrations", connStr)
	if err != nil {
		t.Fatalf("Failed to create migration instance: %v", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	m.Close()

	db, err := Open(ctx, connStr)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	cleanup := func() {
		db.Close()
		postgres.Terminate(ctx)
	}
	return db, cleanup
}

// TestPostgresEvaluator verifies SQL conditions against real data
func TestPostgresEvaluator(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	e := NewPostgresEvaluator(db, 500*time.Millisecond)
	goodCredit := "EXISTS (SELECT 1 FROM applications WHERE id = $1 AND credit_score >= 700)"

	testCases := []struct {
		name      string
		expr      string
		contextID string
		want      bool
		wantErr   bool
	}{
		{"Context id bound", goodCredit, "app-1", true, false},
		{"Context id bound false", goodCredit, "app-2", false, false},
		{"Unknown context", goodCredit, "app-404", false, false},
		{"NULL is false", "(SELECT credit_score >= 700 FROM applications WHERE id = $1)", "app-3", false, false},
		{"No placeholder", "(SELECT count(*) FROM applications) = 3", "", true, false},
		{"Syntax error", "SELEC 1", "", false, true},
		{"Statement timeout", "(SELECT true FROM pg_sleep(5))", "", false, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.EvaluateCondition(context.Background(), tc.expr, tc.contextID)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

// TestPostgresEvaluatorReadOnly verifies expressions cannot write
func TestPostgresEvaluatorReadOnly(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	e := NewPostgresEvaluator(db, time.Second)
	_, err := e.EvaluateCondition(context.Background(), "(SELECT nextval('write_probe') > 0)", "")
	if err == nil {
		t.Fatal("expected an error from a write inside a read-only transaction")
	}

	var count int
	if err := db.QueryRow("SELECT count(*) FROM applications").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Errorf("applications count = %d, want 3", count)
	}
}

// TestPostgresEvaluatorParenthesisEscape verifies an expression that closes the
// surrounding parentheses still runs read-only
func TestPostgresEvaluatorParenthesisEscape(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	e := NewPostgresEvaluator(db, time.Second)
	ctx := context.Background()

	got, err := e.EvaluateCondition(ctx, "false) OR (true", "")
	if err != nil || !got {
		t.Fatalf("escaped expression = %v, %v; want true, nil", got, err)
	}

	if _, err := e.EvaluateCondition(ctx, "false) OR (nextval('write_probe') > 0", ""); err == nil {
		t.Fatal("expected an error from a write after escaping the parentheses")
	}

	var called bool
	if err := db.QueryRow("SELECT is_called FROM write_probe").Scan(&called); err != nil {
		t.Fatalf("read sequence: %v", err)
	}
	if called {
		t.Error("write_probe advanced through an escaped expression")
	}
}

// TestEvaluateWithPostgresOracle verifies the cascade end to end with a database oracle
func TestEvaluateWithPostgresOracle(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ruleSet := []rules.Rule{
		{
			Name: "prime borrower",
			Type: rules.LogicAnd,
			Conditions: []rules.Condition{
				{SourceType: rules.SourceSQL, SQLExpression: "EXISTS (SELECT 1 FROM applications WHERE id = $1 AND credit_score >= 700)"},
			},
			Actions: []rules.Action{{TargetField: "rate", ValueType: rules.ActionValue, Value: 0.05}},
		},
		{
			Name:       "rate notes",
			Type:       rules.LogicAnd,
			Conditions: []rules.Condition{{Field: "rate", Operator: "does_not_exist"}},
			Actions:    []rules.Action{{TargetField: "rate_notes", ValueType: rules.ActionRequired}},
		},
	}

	e := NewPostgresEvaluator(db, time.Second)

	prime := rules.EvaluateWithOracle(context.Background(), e, "app-1", ruleSet, nil, rules.Values{})
	if prime.Computed["rate"] != 0.05 || prime.Required.Has("rate_notes") {
		t.Errorf("prime result = %+v", prime)
	}

	subprime := rules.EvaluateWithOracle(context.Background(), e, "app-2", ruleSet, nil, rules.Values{})
	if _, ok := subprime.Computed["rate"]; ok || !subprime.Required.Has("rate_notes") {
		t.Errorf("subprime result = %+v", subprime)
	}
}
