// Package pgstore provides a PostgreSQL implementation of anomaly.Store
// for the dev gateway. The Lambda binaries always use the in-memory store.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/costguard/internal/anomaly"
)

var tracer = otel.Tracer("github.com/linnemanlabs/costguard/internal/anomaly/pgstore")

//go:embed schema.sql
var schema string

// Store reads anomaly records from PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store. The pool is owned by
// the caller.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const anomalyColumns = `anomaly_id, resource_arn, anomaly_type, cost_impact_usd, service, description`

// Get retrieves a record by anomaly ID.
func (s *Store) Get(ctx context.Context, id string) (*anomaly.Record, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + anomalyColumns + ` FROM anomalies WHERE anomaly_id = $1`
	var r anomaly.Record
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&r.AnomalyID, &r.ResourceARN, &r.AnomalyType, &r.CostImpactUSD, &r.Service, &r.Description,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, fmt.Errorf("select anomaly: %w", err)
	}
	return &r, true, nil
}

// List returns all records ordered by anomaly ID.
func (s *Store) List(ctx context.Context) ([]*anomaly.Record, error) {
	ctx, span := tracer.Start(ctx, "pgstore.List", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + anomalyColumns + ` FROM anomalies ORDER BY anomaly_id`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("select anomalies: %w", err)
	}
	defer rows.Close()

	var out []*anomaly.Record
	for rows.Next() {
		var r anomaly.Record
		if err := rows.Scan(&r.AnomalyID, &r.ResourceARN, &r.AnomalyType, &r.CostImpactUSD, &r.Service, &r.Description); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("scan anomaly: %w", err)
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate anomalies: %w", err)
	}
	return out, nil
}

// Seed upserts the given records. Used at startup to load the reference
// data set, matching the deploy-time data file of the hosted setup.
func (s *Store) Seed(ctx context.Context, recs []*anomaly.Record) error {
	ctx, span := tracer.Start(ctx, "pgstore.Seed", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	const upsert = `
		INSERT INTO anomalies (` + anomalyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (anomaly_id) DO UPDATE SET
			resource_arn = EXCLUDED.resource_arn,
			anomaly_type = EXCLUDED.anomaly_type,
			cost_impact_usd = EXCLUDED.cost_impact_usd,
			service = EXCLUDED.service,
			description = EXCLUDED.description`

	for _, r := range recs {
		if _, err := tx.Exec(ctx, upsert,
			r.AnomalyID, r.ResourceARN, r.AnomalyType, r.CostImpactUSD, r.Service, r.Description,
		); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("upsert anomaly %s: %w", r.AnomalyID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
