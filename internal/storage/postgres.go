package storage

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"griefing/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, databaseURL string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test the connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{
		pool: pool,
	}, nil
}

// Migrate creates the tables and indexes if they do not exist
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

const agreementColumns = `
	agreement_id, factory_id, template_id, token_id,
	staker, counterparty, operator, operator_active,
	ratio::text, ratio_type, countdown_length_seconds, deadline,
	stake::text, grief_cost::text, static_metadata, variable_metadata,
	sequence, created_at, updated_at`

// SaveAgreement upserts an agreement snapshot unless a newer one is stored
func (r *PostgresRepository) SaveAgreement(ctx context.Context, a *models.Agreement) error {
	query := `
		INSERT INTO agreements (
			agreement_id, factory_id, template_id, token_id,
			staker, counterparty, operator, operator_active,
			ratio, ratio_type, countdown_length_seconds, deadline,
			stake, grief_cost, static_metadata, variable_metadata,
			sequence, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10, $11, $12,
			$13::numeric, $14::numeric, $15, $16, $17, $18, $19)
		ON CONFLICT (agreement_id) DO UPDATE SET
			operator = EXCLUDED.operator,
			operator_active = EXCLUDED.operator_active,
			deadline = EXCLUDED.deadline,
			stake = EXCLUDED.stake,
			grief_cost = EXCLUDED.grief_cost,
			variable_metadata = EXCLUDED.variable_metadata,
			sequence = EXCLUDED.sequence,
			updated_at = EXCLUDED.updated_at
		WHERE agreements.sequence < EXCLUDED.sequence
	`

	_, err := r.pool.Exec(ctx, query,
		a.AgreementID,
		a.FactoryID,
		a.TemplateID,
		a.TokenID,
		a.Staker,
		a.Counterparty,
		a.Operator,
		a.OperatorActive,
		a.Ratio,
		a.RatioType,
		int64(a.CountdownLength/time.Second),
		a.Deadline,
		a.Stake,
		a.GriefCost,
		a.StaticMetadata,
		a.VariableMetadata,
		int64(a.Sequence),
		a.CreatedAt,
		a.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save agreement: %w", err)
	}

	return nil
}

// GetAgreement retrieves an agreement by ID
func (r *PostgresRepository) GetAgreement(ctx context.Context, agreementID string) (*models.Agreement, error) {
	query := `SELECT ` + agreementColumns + ` FROM agreements WHERE agreement_id = $1`

	a, err := scanAgreement(r.pool.QueryRow(ctx, query, agreementID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("agreement %s: %w", agreementID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agreement: %w", err)
	}

	return a, nil
}

// ListAgreements lists agreements matching filter, newest first
func (r *PostgresRepository) ListAgreements(ctx context.Context, filter models.AgreementFilter) ([]*models.Agreement, error) {
	where, args := agreementWhere(filter)
	args = append(args, limitArg(filter.Limit), filter.Offset)

	query := fmt.Sprintf(`SELECT %s FROM agreements %s
		ORDER BY created_at DESC, agreement_id ASC
		LIMIT $%d OFFSET $%d`, agreementColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list agreements: %w", err)
	}
	defer rows.Close()

	var agreements []*models.Agreement

	for rows.Next() {
		a, err := scanAgreement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agreement: %w", err)
		}
		agreements = append(agreements, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating agreements: %w", err)
	}

	return agreements, nil
}

// CountAgreements counts agreements matching filter, ignoring paging
func (r *PostgresRepository) CountAgreements(ctx context.Context, filter models.AgreementFilter) (int, error) {
	where, args := agreementWhere(filter)

	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM agreements `+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count agreements: %w", err)
	}
	return count, nil
}

// SaveEvents saves multiple events in a transaction. An event whose ID or
// (source, sequence) is already stored is a replay and is skipped.
func (r *PostgresRepository) SaveEvents(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO agreement_events (
			event_id, source_id, event_type, sequence, data, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING
	`

	for _, event := range events {
		dataJSON, err := json.Marshal(event.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal data: %w", err)
		}

		_, err = tx.Exec(ctx, query,
			event.EventID,
			event.SourceID,
			string(event.EventType),
			int64(event.Sequence),
			dataJSON,
			event.Timestamp,
		)

		if err != nil {
			return fmt.Errorf("failed to save event: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListEvents lists events in emission order
func (r *PostgresRepository) ListEvents(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	var conds []string
	var args []any
	if filter.SourceID != "" {
		args = append(args, filter.SourceID)
		conds = append(conds, fmt.Sprintf("source_id = $%d", len(args)))
	}
	if filter.EventType != "" {
		args = append(args, string(filter.EventType))
		conds = append(conds, fmt.Sprintf("event_type = $%d", len(args)))
	}
	args = append(args, limitArg(filter.Limit), filter.Offset)

	query := fmt.Sprintf(`
		SELECT event_id::text, source_id, event_type, sequence, data, timestamp
		FROM agreement_events %s
		ORDER BY timestamp ASC, source_id ASC, sequence ASC
		LIMIT $%d OFFSET $%d`, whereClause(conds), len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []models.Event

	for rows.Next() {
		var event models.Event
		var eventType string
		var sequence int64
		var dataJSON []byte

		err := rows.Scan(
			&event.EventID,
			&event.SourceID,
			&eventType,
			&sequence,
			&dataJSON,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		event.EventType = models.EventType(eventType)
		event.Sequence = uint64(sequence)
		if len(dataJSON) > 0 {
			if err := json.Unmarshal(dataJSON, &event.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal data: %w", err)
			}
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// SaveFactory upserts a factory's registry status
func (r *PostgresRepository) SaveFactory(ctx context.Context, f *models.Factory) error {
	query := `
		INSERT INTO factories (
			factory_id, registry_id, status, extra_data, authorized_at, retired_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (factory_id) DO UPDATE SET
			status = EXCLUDED.status,
			retired_at = EXCLUDED.retired_at
	`

	_, err := r.pool.Exec(ctx, query,
		f.FactoryID,
		f.RegistryID,
		string(f.Status),
		f.ExtraData,
		f.AuthorizedAt,
		f.RetiredAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save factory: %w", err)
	}

	return nil
}

// ListFactories lists factories in authorization order
func (r *PostgresRepository) ListFactories(ctx context.Context) ([]*models.Factory, error) {
	query := `
		SELECT factory_id, registry_id, status, extra_data, authorized_at, retired_at
		FROM factories
		ORDER BY authorized_at ASC, factory_id ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list factories: %w", err)
	}
	defer rows.Close()

	var factories []*models.Factory

	for rows.Next() {
		var f models.Factory
		var status string

		if err := rows.Scan(&f.FactoryID, &f.RegistryID, &status, &f.ExtraData, &f.AuthorizedAt, &f.RetiredAt); err != nil {
			return nil, fmt.Errorf("failed to scan factory: %w", err)
		}
		f.Status = models.FactoryStatus(status)

		factories = append(factories, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating factories: %w", err)
	}

	return factories, nil
}

// SaveInstance stores an instance's provenance record
func (r *PostgresRepository) SaveInstance(ctx context.Context, rec *models.InstanceRecord) error {
	query := `
		INSERT INTO instances (
			instance_id, factory_id, registry_id, instance_type, idx, creator, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (instance_id) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query,
		rec.InstanceID,
		rec.FactoryID,
		rec.RegistryID,
		rec.InstanceType,
		rec.Index,
		rec.Creator,
		rec.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save instance: %w", err)
	}

	return nil
}

// GetInstance retrieves an instance's provenance record
func (r *PostgresRepository) GetInstance(ctx context.Context, instanceID string) (*models.InstanceRecord, error) {
	query := `
		SELECT instance_id, factory_id, registry_id, instance_type, idx, creator, created_at
		FROM instances
		WHERE instance_id = $1
	`

	var rec models.InstanceRecord
	err := r.pool.QueryRow(ctx, query, instanceID).Scan(
		&rec.InstanceID,
		&rec.FactoryID,
		&rec.RegistryID,
		&rec.InstanceType,
		&rec.Index,
		&rec.Creator,
		&rec.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("instance %s: %w", instanceID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}

	return &rec, nil
}

// Ping checks the database connection
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func scanAgreement(row pgx.Row) (*models.Agreement, error) {
	var a models.Agreement
	var lengthSeconds, sequence int64

	err := row.Scan(
		&a.AgreementID,
		&a.FactoryID,
		&a.TemplateID,
		&a.TokenID,
		&a.Staker,
		&a.Counterparty,
		&a.Operator,
		&a.OperatorActive,
		&a.Ratio,
		&a.RatioType,
		&lengthSeconds,
		&a.Deadline,
		&a.Stake,
		&a.GriefCost,
		&a.StaticMetadata,
		&a.VariableMetadata,
		&sequence,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.CountdownLength = time.Duration(lengthSeconds) * time.Second
	a.Sequence = uint64(sequence)
	return &a, nil
}

func agreementWhere(filter models.AgreementFilter) (string, []any) {
	var conds []string
	var args []any
	if filter.FactoryID != "" {
		args = append(args, filter.FactoryID)
		conds = append(conds, fmt.Sprintf("factory_id = $%d", len(args)))
	}
	if filter.Staker != "" {
		args = append(args, filter.Staker)
		conds = append(conds, fmt.Sprintf("staker = $%d", len(args)))
	}
	if filter.Counterparty != "" {
		args = append(args, filter.Counterparty)
		conds = append(conds, fmt.Sprintf("counterparty = $%d", len(args)))
	}
	return whereClause(conds), args
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(conds, " AND ")
}

// limitArg maps a non-positive limit to LIMIT NULL, i.e. no limit
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}
