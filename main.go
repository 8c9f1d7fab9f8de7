package main

import (
	"log"

	"gomix/adapters/excel"
	"gomix/adapters/memory"
	"gomix/adapters/postgres"
	"gomix/adapters/report"
	"gomix/internal"
	"gomix/internal/allocator"
	"gomix/internal/api"
	"gomix/internal/config"
	"gomix/internal/errors"
	"gomix/internal/fitting"
	"gomix/internal/pipeline"
	"gomix/ports"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// initDatabase initializes the PostgreSQL database connection
func initDatabase(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}
	return db, nil
}

func main() {
	// Load .env file if present (development convenience)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	logger := internal.NewDefaultLogger()

	var models ports.ModelRepository
	var plans ports.PlanRepository
	if cfg.Database.URL != "" {
		db, err := initDatabase(cfg)
		if err != nil {
			log.Fatalf("database error: %v", err)
		}
		defer db.Close()
		models = postgres.NewModelRepository(db)
		plans = postgres.NewPlanRepository(db)
		logger.Info("using postgres persistence")
	} else {
		models = memory.NewModelRepository()
		plans = memory.NewPlanRepository()
		logger.Warn("DATABASE_URL not set; results are kept in memory only")
	}

	engine := fitting.NewEngine(logger)
	runner := pipeline.NewRunner(engine, logger)
	optimizer := allocator.NewOptimizer(logger)

	server := api.NewServer(api.Deps{
		Runner:    runner,
		Optimizer: optimizer,
		Models:    models,
		Plans:     plans,
		Reporter:  report.NewRenderer(),
		Exporter:  excel.NewPlanWriter(),
		Engine:    cfg.Engine,
		Log:       logger,
	})

	if err := server.ListenAndServe(cfg.Server.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
