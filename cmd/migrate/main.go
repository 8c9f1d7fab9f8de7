package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS fitted_models (
	id                TEXT PRIMARY KEY,
	run_id            TEXT NOT NULL DEFAULT '',
	region            TEXT NOT NULL DEFAULT '',
	strategy          TEXT NOT NULL,
	residual_variance DOUBLE PRECISION NOT NULL,
	condition_number  DOUBLE PRECISION NOT NULL,
	converged         BOOLEAN NOT NULL,
	periods           INTEGER NOT NULL,
	payload           JSONB NOT NULL,
	fitted_at         TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fitted_models_run ON fitted_models (run_id);

CREATE TABLE IF NOT EXISTS allocation_plans (
	id         TEXT PRIMARY KEY,
	model_id   TEXT NOT NULL REFERENCES fitted_models (id),
	horizon    INTEGER NOT NULL,
	objective  DOUBLE PRECISION NOT NULL,
	converged  BOOLEAN NOT NULL,
	iterations INTEGER NOT NULL,
	seed       BIGINT NOT NULL,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_allocation_plans_model ON allocation_plans (model_id);
`

func main() {
	databaseURL := os.Getenv("DATABASE_URL")
	if len(os.Args) > 1 {
		databaseURL = os.Args[1]
	}
	if databaseURL == "" {
		log.Fatal("Usage: migrate <database_url> (or set DATABASE_URL)")
	}

	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}
	log.Println("Schema applied")
}
