package services

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"climate-api/internal/dataset"
	"climate-api/internal/models"
	"climate-api/pkg/logging"
	"climate-api/pkg/metrics"
)

func newTestService(t *testing.T, records []models.ClimateRecord) (*ClimateService, *metrics.Collector) {
	t.Helper()
	collector := metrics.NewCollector("climate_test", prometheus.NewRegistry())
	return NewClimateService(dataset.New(records), logging.NewNopLogger(), collector), collector
}

func exampleRecords() []models.ClimateRecord {
	return []models.ClimateRecord{
		{Country: "Testland", AverageTemperature: "10.0"},
		{Country: "Testland", AverageTemperature: "20.0"},
		{Country: "Other", AverageTemperature: "5.0"},
	}
}

func TestAverageTemperature_Example(t *testing.T) {
	svc, _ := newTestService(t, exampleRecords())
	ctx := context.Background()

	tests := []struct {
		country string
		want    float64
		count   int
	}{
		{"Testland", 15.0, 2},
		{"Other", 5.0, 1},
	}
	for _, tt := range tests {
		got, err := svc.AverageTemperature(ctx, tt.country)
		if err != nil {
			t.Fatalf("AverageTemperature(%q) error = %v", tt.country, err)
		}
		if got.Mean != tt.want || got.Count != tt.count || got.Skipped != 0 {
			t.Errorf("AverageTemperature(%q) = %+v, want mean %v over %d", tt.country, got, tt.want, tt.count)
		}
	}

	_, err := svc.AverageTemperature(ctx, "Nowhere")
	var nf *models.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("AverageTemperature(Nowhere) error = %v, want *NotFoundError", err)
	}
	if nf.Country != "Nowhere" {
		t.Errorf("NotFoundError.Country = %q", nf.Country)
	}
}

func TestAverageTemperature_MeanCorrectness(t *testing.T) {
	values := []string{"-12.345", "0.001", "33.3", "7", "1e1", "-0.5", "19.875"}
	nums := []float64{-12.345, 0.001, 33.3, 7, 10, -0.5, 19.875}

	records := make([]models.ClimateRecord, 0, len(values)+2)
	for _, v := range values {
		records = append(records, models.ClimateRecord{Country: "Sampleland", AverageTemperature: v})
	}
	records = append(records,
		models.ClimateRecord{Country: "sampleland", AverageTemperature: "1000"},
		models.ClimateRecord{Country: "Sampleland Islands", AverageTemperature: "1000"},
	)

	var sum float64
	for _, n := range nums {
		sum += n
	}
	want := sum / float64(len(nums))

	svc, _ := newTestService(t, records)
	got, err := svc.AverageTemperature(context.Background(), "Sampleland")
	if err != nil {
		t.Fatalf("AverageTemperature() error = %v", err)
	}
	if got.Count != len(nums) {
		t.Errorf("Count = %d, want %d", got.Count, len(nums))
	}
	if math.Abs(got.Mean-want) > 1e-9*math.Abs(want) {
		t.Errorf("Mean = %v, want %v", got.Mean, want)
	}
}

func TestAverageTemperature_EmptyKey(t *testing.T) {
	svc, _ := newTestService(t, append(exampleRecords(), models.ClimateRecord{Country: "", AverageTemperature: "1"}))

	_, err := svc.AverageTemperature(context.Background(), "")
	if !errors.Is(err, models.ErrEmptyKey) {
		t.Errorf("error = %v, want ErrEmptyKey", err)
	}
}

func TestAverageTemperature_SkipsUnparsable(t *testing.T) {
	svc, collector := newTestService(t, []models.ClimateRecord{
		{Country: "Testland", AverageTemperature: "10.0"},
		{Country: "Testland", AverageTemperature: ""},
		{Country: "Testland", AverageTemperature: "n/a"},
		{Country: "Testland", AverageTemperature: "20.0"},
	})

	got, err := svc.AverageTemperature(context.Background(), "Testland")
	if err != nil {
		t.Fatalf("AverageTemperature() error = %v", err)
	}
	if got.Mean != 15.0 || got.Count != 2 || got.Skipped != 2 {
		t.Errorf("result = %+v, want mean 15 count 2 skipped 2", got)
	}
	if n := testutil.ToFloat64(collector.AggregationSkippedTotal); n != 2 {
		t.Errorf("AggregationSkippedTotal = %v, want 2", n)
	}
}

func TestAverageTemperature_AllUnparsable(t *testing.T) {
	svc, _ := newTestService(t, []models.ClimateRecord{
		{Country: "Testland", Date: "1900-01-01", AverageTemperature: "warm"},
		{Country: "Testland", Date: "1900-02-01", AverageTemperature: ""},
	})

	_, err := svc.AverageTemperature(context.Background(), "Testland")
	if !IsParseError(err) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
	var perr *models.ParseError
	errors.As(err, &perr)
	if perr.Value != "warm" {
		t.Errorf("ParseError should report the first bad value, got %q", perr.Value)
	}
}

func TestAverageTemperature_ConcurrentReads(t *testing.T) {
	svc, _ := newTestService(t, exampleRecords())

	const workers = 50
	results := make([]float64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.AverageTemperature(context.Background(), "Testland")
			if err != nil {
				t.Errorf("worker %d: %v", i, err)
				return
			}
			results[i] = res.Mean
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		if r != 15.0 {
			t.Errorf("worker %d got %v, want 15", i, r)
		}
	}
}

func TestCountries(t *testing.T) {
	svc, _ := newTestService(t, exampleRecords())

	got := svc.Countries(context.Background())
	if len(got) != 2 || got[0].Country != "Other" || got[1] != (models.CountrySummary{Country: "Testland", Records: 2}) {
		t.Errorf("Countries() = %+v", got)
	}
	if svc.RecordCount() != 3 {
		t.Errorf("RecordCount() = %d, want 3", svc.RecordCount())
	}
}

func TestFormatMean(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{15, "15.0"},
		{5, "5.0"},
		{0, "0.0"},
		{-3, "-3.0"},
		{12.345, "12.345"},
		{-0.25, "-0.25"},
		{1.0 / 3.0, "0.3333333333333333"},
		{1e21, "1000000000000000000000.0"},
		{math.NaN(), "NaN"},
		{math.Inf(1), "+Inf"},
	}
	for _, tt := range tests {
		if got := FormatMean(tt.in); got != tt.want {
			t.Errorf("FormatMean(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
