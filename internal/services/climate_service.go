package services

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"climate-api/internal/dataset"
	"climate-api/internal/models"
	"climate-api/pkg/logging"
	"climate-api/pkg/metrics"
)

// ClimateService answers aggregation queries against the in-memory dataset
type ClimateService struct {
	data    *dataset.Dataset
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewClimateService creates a new climate service over an already loaded dataset
func NewClimateService(data *dataset.Dataset, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *ClimateService {
	return &ClimateService{
		data:    data,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// AverageTemperature returns the arithmetic mean of AverageTemperature over
// every record whose Country equals country.
//
// Errors: models.ErrEmptyKey for an empty country, *models.NotFoundError when
// nothing matches, and *models.ParseError when records match but none of their
// temperatures parse. Matched records with unparsable temperatures are
// otherwise skipped and reported in AggregateResult.Skipped.
func (s *ClimateService) AverageTemperature(ctx context.Context, country string) (*models.AggregateResult, error) {
	if country == "" {
		return nil, models.ErrEmptyKey
	}

	matched := s.data.Filter(country)
	s.metrics.AggregationMatchedRecords.Observe(float64(len(matched)))

	if len(matched) == 0 {
		return nil, &models.NotFoundError{Country: country}
	}

	var (
		sum      float64
		count    int
		firstErr error
	)
	for i := range matched {
		v, err := matched[i].Temperature()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		sum += v
		count++
	}

	skipped := len(matched) - count
	if skipped > 0 {
		s.metrics.AggregationSkippedTotal.Add(float64(skipped))
		s.logger.Debug(ctx, "[AGGREGATE_SKIPPED] Skipped records with unparsable temperature", logging.Fields{
			"country": country,
			"matched": len(matched),
			"skipped": skipped,
		})
	}

	if count == 0 {
		return nil, firstErr
	}

	return &models.AggregateResult{
		Country: country,
		Mean:    sum / float64(count),
		Count:   count,
		Skipped: skipped,
	}, nil
}

// Countries lists the distinct countries in the dataset
func (s *ClimateService) Countries(ctx context.Context) []models.CountrySummary {
	return s.data.Countries()
}

// RecordCount returns the size of the dataset
func (s *ClimateService) RecordCount() int {
	return s.data.Len()
}

// IsParseError reports whether err came from an unparsable temperature
func IsParseError(err error) bool {
	var perr *models.ParseError
	return errors.As(err, &perr)
}

// FormatMean renders a mean as the shortest decimal that round-trips, always
// with a fractional part: 15 becomes "15.0", 12.345 stays "12.345".
func FormatMean(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".IN") {
		s += ".0"
	}
	return s
}
