package services

import (
	"context"
	"fmt"
	"time"

	"climate-api/internal/dataset"
	"climate-api/internal/models"
	"climate-api/pkg/logging"
	"climate-api/pkg/metrics"
)

// RecordStore is the write side of the climate repository used by ingestion
type RecordStore interface {
	InsertBatch(ctx context.Context, records []models.ClimateRecord) error
	// ReplaceAll swaps the table contents for batches atomically.
	ReplaceAll(ctx context.Context, batches [][]models.ClimateRecord) error
}

// IngestionService copies a dataset file into PostgreSQL
type IngestionService struct {
	store   RecordStore
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// IngestionResult contains ingestion statistics
type IngestionResult struct {
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
	Batches           int
	Duration          time.Duration
	Errors            []string
}

// IngestOptions controls a single ingestion run
type IngestOptions struct {
	BatchSize int
	// Replace swaps the whole table in one transaction. Without it batches
	// are appended and committed one at a time.
	Replace bool
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(store RecordStore, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *IngestionService {
	return &IngestionService{
		store:   store,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// IngestSource reads every record from src and stores the valid ones in
// batches, preserving source order. Records without a country are counted
// as failed and skipped; a failed batch aborts the run.
func (s *IngestionService) IngestSource(ctx context.Context, src dataset.Source, opts IngestOptions) (*IngestionResult, error) {
	startTime := time.Now()
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}

	s.logger.Info(ctx, "[INGEST_START] Starting climate data ingestion", logging.Fields{
		"source":     src.Name(),
		"batch_size": opts.BatchSize,
		"replace":    opts.Replace,
		"stage":      "INITIALIZATION",
	})

	records, err := src.LoadAll(ctx)
	if err != nil {
		s.metrics.RecordIngestionError("read_error")
		return nil, fmt.Errorf("failed to read %s: %w", src.Name(), err)
	}

	result := &IngestionResult{
		TotalRecords: len(records),
		Errors:       make([]string, 0),
	}

	var batches [][]models.ClimateRecord
	batch := make([]models.ClimateRecord, 0, opts.BatchSize)
	for i := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := records[i].Validate(); err != nil {
			result.FailedRecords++
			result.Errors = append(result.Errors, fmt.Sprintf("record %d: %v", i, err))
			s.metrics.RecordIngestionError("validation_error")
			continue
		}

		batch = append(batch, records[i])
		if len(batch) >= opts.BatchSize {
			batches = append(batches, batch)
			batch = make([]models.ClimateRecord, 0, opts.BatchSize)
		}
	}
	if len(batch) > 0 {
		batches = append(batches, batch)
	}

	if opts.Replace {
		if err := s.store.ReplaceAll(ctx, batches); err != nil {
			s.metrics.RecordIngestionError("insert_error")
			return nil, fmt.Errorf("failed to replace climate records: %w", err)
		}
		for _, b := range batches {
			result.SuccessfulRecords += len(b)
		}
		result.Batches = len(batches)
	} else {
		for _, b := range batches {
			if err := s.store.InsertBatch(ctx, b); err != nil {
				s.metrics.RecordIngestionError("insert_error")
				return nil, fmt.Errorf("failed to insert batch %d: %w", result.Batches+1, err)
			}
			result.SuccessfulRecords += len(b)
			result.Batches++
		}
	}

	result.Duration = time.Since(startTime)

	s.logger.Info(ctx, "[INGEST_COMPLETE] Climate data ingestion completed", logging.Fields{
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"batches":            result.Batches,
		"duration_seconds":   result.Duration.Seconds(),
		"stage":              "COMPLETE",
	})

	return result, nil
}
