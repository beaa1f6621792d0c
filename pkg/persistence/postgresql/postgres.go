// Package postgresql provides the PostgreSQL persistence implementation.
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/nodeflow/nodeflow/pkg/persistence"
	"github.com/nodeflow/nodeflow/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger

	parameterRepo *ParameterRepository
	familyRepo    *FamilyRepository
	versionRepo   *VersionRepository
	subnodeRepo   *SubNodeRepository
	executionRepo *ExecutionRepository
}

// NewPersistence creates a new PostgreSQL persistence layer and runs
// migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	postgres := &Persistence{
		db:     database,
		logger: logger,
	}
	postgres.parameterRepo = &ParameterRepository{db: database, logger: logger}
	postgres.familyRepo = &FamilyRepository{db: database, logger: logger}
	postgres.versionRepo = &VersionRepository{db: database, logger: logger}
	postgres.subnodeRepo = &SubNodeRepository{db: database, logger: logger}
	postgres.executionRepo = &ExecutionRepository{db: database, logger: logger}

	return postgres, nil
}

func (p *Persistence) Parameters() persistence.ParameterRepository { return p.parameterRepo }
func (p *Persistence) Families() persistence.FamilyRepository      { return p.familyRepo }
func (p *Persistence) Versions() persistence.VersionRepository     { return p.versionRepo }
func (p *Persistence) SubNodes() persistence.SubNodeRepository     { return p.subnodeRepo }
func (p *Persistence) Executions() persistence.ExecutionRepository { return p.executionRepo }

// Close closes the database connection.
func (p *Persistence) Close(ctx context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// uniqueViolation maps PostgreSQL unique_violation errors onto the given
// sentinel so callers can classify duplicates portably.
func uniqueViolation(err, sentinel error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return sentinel
	}

	return err
}
