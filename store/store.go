// Package store provides read access to a PostgreSQL-backed metadata store.
// Listing calls accept a filter predicate in the filtersql mini-language and
// run the compiled SQL against the live database.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mdstore/filtersql"
	"github.com/mdstore/filtersql/query"
)

// Artifact is one row of the Artifact table.
type Artifact struct {
	ID                       int64
	TypeID                   int64
	Name                     *string
	URI                      *string
	State                    *string
	ExternalID               *string
	CreateTimeSinceEpoch     int64
	LastUpdateTimeSinceEpoch int64
}

// Execution is one row of the Execution table.
type Execution struct {
	ID                       int64
	TypeID                   int64
	Name                     *string
	LastKnownState           *string
	ExternalID               *string
	CreateTimeSinceEpoch     int64
	LastUpdateTimeSinceEpoch int64
}

// Context is one row of the Context table.
type Context struct {
	ID                       int64
	TypeID                   int64
	Name                     *string
	ExternalID               *string
	CreateTimeSinceEpoch     int64
	LastUpdateTimeSinceEpoch int64
}

// Store reads metadata nodes from PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New connects a store to the database named by the connection string.
func New(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the store's connections.
func (s *Store) Close() {
	s.pool.Close()
}

var artifactColumns = []string{
	"id", "type_id", "name", "uri", "state", "external_id",
	"create_time_since_epoch", "last_update_time_since_epoch",
}

var executionColumns = []string{
	"id", "type_id", "name", "last_known_state", "external_id",
	"create_time_since_epoch", "last_update_time_since_epoch",
}

var contextColumns = []string{
	"id", "type_id", "name", "external_id",
	"create_time_since_epoch", "last_update_time_since_epoch",
}

// SelectStatement assembles the full SELECT for a node kind and filter. An
// empty filter selects the whole base table. The projection is DISTINCT over
// the base alias because relationship joins can multiply rows, and ordered
// by id so results are deterministic.
func SelectStatement(kind query.NodeKind, columns []string, filter string) (string, error) {
	base := kind.Table()
	projection := ""
	for i, col := range columns {
		if i > 0 {
			projection += ", "
		}
		projection += base + "." + col
	}
	if filter == "" {
		return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s.id", projection, base, base), nil
	}
	from, where, err := filtersql.Compile(kind, filter)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s ORDER BY %s.id", projection, from, where, base), nil
}

// ListArtifacts returns the artifacts matching the filter, ordered by id.
func (s *Store) ListArtifacts(ctx context.Context, filter string) ([]Artifact, error) {
	stmt, err := SelectStatement(query.Artifact, artifactColumns, filter)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []Artifact
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.ID, &a.TypeID, &a.Name, &a.URI, &a.State, &a.ExternalID,
			&a.CreateTimeSinceEpoch, &a.LastUpdateTimeSinceEpoch); err != nil {
			return nil, fmt.Errorf("failed to scan artifact row: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

// ListExecutions returns the executions matching the filter, ordered by id.
func (s *Store) ListExecutions(ctx context.Context, filter string) ([]Execution, error) {
	stmt, err := SelectStatement(query.Execution, executionColumns, filter)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	var executions []Execution
	for rows.Next() {
		var e Execution
		if err := rows.Scan(&e.ID, &e.TypeID, &e.Name, &e.LastKnownState, &e.ExternalID,
			&e.CreateTimeSinceEpoch, &e.LastUpdateTimeSinceEpoch); err != nil {
			return nil, fmt.Errorf("failed to scan execution row: %w", err)
		}
		executions = append(executions, e)
	}
	return executions, rows.Err()
}

// ListContexts returns the contexts matching the filter, ordered by id.
func (s *Store) ListContexts(ctx context.Context, filter string) ([]Context, error) {
	stmt, err := SelectStatement(query.Context, contextColumns, filter)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to list contexts: %w", err)
	}
	defer rows.Close()

	var contexts []Context
	for rows.Next() {
		var c Context
		if err := rows.Scan(&c.ID, &c.TypeID, &c.Name, &c.ExternalID,
			&c.CreateTimeSinceEpoch, &c.LastUpdateTimeSinceEpoch); err != nil {
			return nil, fmt.Errorf("failed to scan context row: %w", err)
		}
		contexts = append(contexts, c)
	}
	return contexts, rows.Err()
}
