package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found — using system environment variables")
	}

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		dbGetEnv("DB_USER", "clearance_user"),
		dbGetEnv("DB_PASSWORD", "clearance_password"),
		dbGetEnv("DB_HOST", "localhost"),
		dbGetEnv("DB_PORT", "5432"),
		dbGetEnv("DB_NAME", "clearance_monitor"),
	)

	ctx := context.Background()

	fmt.Println("Connecting to PostgreSQL...")
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure PostgreSQL is running:\n  docker-compose up -d postgres", err)
	}
	defer conn.Close(ctx)
	fmt.Println("✓ Connected")

	// Run all steps in order
	step1_detectors_table(ctx, conn)
	step2_violations_table(ctx, conn)
	step3_indexes(ctx, conn)
	step4_verify(ctx, conn)

	fmt.Println("\n✅ Database initialised successfully")
	fmt.Println("   Run next: STORE_BACKEND=postgres go run ./cmd/clearance-monitor")
}

// ─────────────────────────────────────────────────────────────
// Step 1 — detectors table
// ─────────────────────────────────────────────────────────────
func step1_detectors_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 1: detectors table ─────────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS detectors (

			-- Device identity — assigned by the installer, e.g. TEST_001
			device_id         TEXT             PRIMARY KEY,

			-- Human-readable installation site, e.g. "Main Street Bridge"
			location          TEXT             NOT NULL DEFAULT '',

			-- Posted clearance at this site, in feet
			clearance_height  DOUBLE PRECISION NOT NULL,

			-- Liveness is derived from this at query time.
			-- Nothing in the schema marks a detector active or inactive.
			last_heartbeat    TIMESTAMPTZ      NOT NULL,

			created_at        TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
			updated_at        TIMESTAMPTZ      NOT NULL DEFAULT NOW(),

			CONSTRAINT chk_clearance_positive CHECK (clearance_height > 0)
		);
	`, "detectors table created")
}

// ─────────────────────────────────────────────────────────────
// Step 2 — violations table
// ─────────────────────────────────────────────────────────────
func step2_violations_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 2: violations table ────────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS violations (

			id               BIGSERIAL        PRIMARY KEY,

			-- Snapshot of the detector at detection time. Deliberately NOT
			-- a foreign key: a violation record must survive as a readable
			-- snapshot even while its detector row is being removed, and
			-- the cascade delete is handled in the application.
			device_id        TEXT             NOT NULL,
			location         TEXT             NOT NULL DEFAULT '',

			-- Measured vehicle height and the clearance it exceeded, feet
			detected_height  DOUBLE PRECISION NOT NULL,
			clearance_height DOUBLE PRECISION NOT NULL,
			excess_height    DOUBLE PRECISION NOT NULL,

			-- Must exactly match domain.Severity constants
			severity         TEXT             NOT NULL,

			-- Must exactly match domain.Status constants
			status           TEXT             NOT NULL DEFAULT 'DETECTED',

			-- Operator notes, set on acknowledgment
			notes            TEXT             NOT NULL DEFAULT '',

			detected_at      TIMESTAMPTZ      NOT NULL,

			-- NULL means not yet acknowledged
			acknowledged_at  TIMESTAMPTZ,

			created_at       TIMESTAMPTZ      NOT NULL DEFAULT NOW(),

			CONSTRAINT chk_severity CHECK (
				severity IN ('LOW', 'MEDIUM', 'HIGH', 'CRITICAL')
			),

			CONSTRAINT chk_status CHECK (
				status IN ('DETECTED', 'ACKNOWLEDGED', 'RESOLVED', 'IGNORED')
			)
		);
	`, "violations table created")
}

// ─────────────────────────────────────────────────────────────
// Step 3 — Indexes
// ─────────────────────────────────────────────────────────────
func step3_indexes(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 3: Indexes ─────────────────────────────")

	indexes := []struct {
		name string
		sql  string
		why  string
	}{
		{
			name: "idx_violations_device",
			sql: `CREATE INDEX IF NOT EXISTS idx_violations_device
				  ON violations (device_id, id);`,
			why: "query: violation history for one detector",
		},
		{
			name: "idx_violations_detected_at",
			sql: `CREATE INDEX IF NOT EXISTS idx_violations_detected_at
				  ON violations (detected_at DESC);`,
			why: "query: violations in a date range / today",
		},
		{
			name: "idx_violations_pending",
			sql: `CREATE INDEX IF NOT EXISTS idx_violations_pending
				  ON violations (severity, detected_at DESC)
				  WHERE status = 'DETECTED';`,
			why: "query: pending violations only (partial index)",
		},
		{
			name: "idx_detectors_heartbeat",
			sql: `CREATE INDEX IF NOT EXISTS idx_detectors_heartbeat
				  ON detectors (last_heartbeat DESC);`,
			why: "query: liveness sweep over stale detectors",
		},
	}

	for _, idx := range indexes {
		execOrFatal(ctx, conn, idx.sql,
			fmt.Sprintf("%-40s ← %s", idx.name, idx.why),
		)
	}
}

// ─────────────────────────────────────────────────────────────
// Step 4 — Verify everything was created
// ─────────────────────────────────────────────────────────────
func step4_verify(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 4: Verification ────────────────────────")

	// Check tables exist
	tables := []string{"detectors", "violations"}
	for _, table := range tables {
		var exists bool
		err := conn.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_name = $1
			)
		`, table).Scan(&exists)
		if err != nil || !exists {
			log.Fatalf("Table %s was not created: %v", table, err)
		}
		fmt.Printf("  ✓ table: %s\n", table)
	}

	// Check indexes
	var indexCount int
	err := conn.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM pg_indexes
		WHERE tablename IN ('detectors', 'violations')
		AND indexname LIKE 'idx_%'
	`).Scan(&indexCount)
	if err != nil {
		log.Fatalf("Index check failed: %v", err)
	}
	fmt.Printf("  ✓ indexes created: %d\n", indexCount)
}

// ─────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────

// execOrFatal runs a SQL statement and prints result or exits on error
func execOrFatal(ctx context.Context, conn *pgx.Conn, sql, label string) {
	_, err := conn.Exec(ctx, sql)
	if err != nil {
		log.Fatalf("FAILED — %s\nError: %v\nSQL: %s", label, err, sql)
	}
	fmt.Printf("  ✓ %s\n", label)
}

func dbGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
