package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"climate-api/internal/models"
	"climate-api/pkg/database"
	"climate-api/pkg/logging"
	"climate-api/pkg/metrics"
)

// ClimateRepository provides data access for climate records stored in PostgreSQL
type ClimateRepository interface {
	// Name and LoadAll make the repository a dataset.Source.
	Name() string
	LoadAll(ctx context.Context) ([]models.ClimateRecord, error)

	InsertBatch(ctx context.Context, records []models.ClimateRecord) error
	ReplaceAll(ctx context.Context, batches [][]models.ClimateRecord) error
	Count(ctx context.Context) (int, error)
	HealthCheck(ctx context.Context) error
}

type climateRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewClimateRepository creates a new climate repository
func NewClimateRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) ClimateRepository {
	return &climateRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

func (r *climateRepository) Name() string {
	return "postgres:climate_records"
}

// LoadAll streams every record in insertion order
func (r *climateRepository) LoadAll(ctx context.Context) ([]models.ClimateRecord, error) {
	query := `
		SELECT recorded_on, average_temperature, average_temperature_uncertainty, country
		FROM climate_records
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, "load_all_records", query)
	if err != nil {
		return nil, fmt.Errorf("failed to query climate records: %w", err)
	}
	defer rows.Close()

	var records []models.ClimateRecord
	for rows.Next() {
		var rec models.ClimateRecord
		if err := rows.StructScan(&rec); err != nil {
			return nil, fmt.Errorf("failed to scan climate record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate climate records: %w", err)
	}

	return records, nil
}

// InsertBatch inserts records in a single transaction
func (r *climateRepository) InsertBatch(ctx context.Context, records []models.ClimateRecord) error {
	if len(records) == 0 {
		return nil
	}

	timer := time.Now()
	defer func() {
		r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Batch insert completed", logging.Fields{
			"count":       len(records),
			"duration_ms": time.Since(timer).Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.insertTx(ctx, tx, records); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.metrics.DBQueryDuration.WithLabelValues("insert_batch").Observe(time.Since(timer).Seconds())
	r.metrics.IngestionRecordsTotal.Add(float64(len(records)))

	return nil
}

// ReplaceAll truncates the table and inserts every batch in one transaction.
// On error the table keeps its previous contents.
func (r *climateRepository) ReplaceAll(ctx context.Context, batches [][]models.ClimateRecord) error {
	timer := time.Now()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `TRUNCATE climate_records RESTART IDENTITY`); err != nil {
		r.metrics.RecordDBError("truncate_error")
		return fmt.Errorf("failed to truncate climate records: %w", err)
	}

	total := 0
	for i, batch := range batches {
		if err := r.insertTx(ctx, tx, batch); err != nil {
			return fmt.Errorf("batch %d: %w", i+1, err)
		}
		total += len(batch)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.metrics.DBQueryDuration.WithLabelValues("replace_all").Observe(time.Since(timer).Seconds())
	r.metrics.IngestionRecordsTotal.Add(float64(total))

	r.logger.Info(ctx, "[REPO_REPLACE] Climate records replaced", logging.Fields{
		"count":       total,
		"batches":     len(batches),
		"duration_ms": time.Since(timer).Milliseconds(),
	})
	return nil
}

func (r *climateRepository) insertTx(ctx context.Context, tx *sqlx.Tx, records []models.ClimateRecord) error {
	if len(records) == 0 {
		return nil
	}

	stmt, err := tx.PrepareNamedContext(ctx, `
		INSERT INTO climate_records (recorded_on, average_temperature, average_temperature_uncertainty, country)
		VALUES (:recorded_on, :average_temperature, :average_temperature_uncertainty, :country)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range records {
		if _, err := stmt.ExecContext(ctx, &records[i]); err != nil {
			r.metrics.RecordDBError("insert_error")
			return fmt.Errorf("failed to insert climate record %d: %w", i, err)
		}
	}
	return nil
}

// Count returns the number of stored records
func (r *climateRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, "count_records", &n, `SELECT COUNT(*) FROM climate_records`); err != nil {
		return 0, fmt.Errorf("failed to count climate records: %w", err)
	}
	return n, nil
}

// HealthCheck performs a repository health check
func (r *climateRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
