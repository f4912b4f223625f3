package dataset

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"climate-api/internal/models"
	"climate-api/pkg/logging"
	"climate-api/pkg/metrics"
)

const fixtureJSON = `[
  {"dt":"1850-01-01","AverageTemperature":"10.0","AverageTemperatureUncertainty":"1.2","Country":"Testland"},
  {"dt":"1850-02-01","AverageTemperature":"20.0","AverageTemperatureUncertainty":"0.9","Country":"Testland"},
  {"dt":"1850-01-01","AverageTemperature":"5.0","AverageTemperatureUncertainty":"2.0","Country":"Other"}
]`

const fixtureCSV = `dt,AverageTemperature,AverageTemperatureUncertainty,Country
1850-01-01,10.0,1.2,Testland
1850-02-01,20.0,0.9,Testland
1850-03-01,,,Testland
1850-01-01,5.0,2.0,Other
1850-01-01,NA,,"Bonaire, Saint Eustatius And Saba"
`

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLoadFile_JSON(t *testing.T) {
	path := writeFixture(t, "climate.json", fixtureJSON)

	ds, err := LoadFile(path, FormatAuto)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	want := []models.ClimateRecord{
		{Date: "1850-01-01", AverageTemperature: "10.0", AverageTemperatureUncertainty: "1.2", Country: "Testland"},
		{Date: "1850-02-01", AverageTemperature: "20.0", AverageTemperatureUncertainty: "0.9", Country: "Testland"},
		{Date: "1850-01-01", AverageTemperature: "5.0", AverageTemperatureUncertainty: "2.0", Country: "Other"},
	}
	if got := ds.Records(); !reflect.DeepEqual(got, want) {
		t.Errorf("Records() = %+v, want %+v", got, want)
	}
}

func TestLoadFile_Deterministic(t *testing.T) {
	path := writeFixture(t, "climate.json", fixtureJSON)

	first, err := LoadFile(path, FormatJSON)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	second, err := LoadFile(path, FormatJSON)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}

	if !reflect.DeepEqual(first.Records(), second.Records()) {
		t.Error("loading the same file twice produced different sequences")
	}
	if !reflect.DeepEqual(first.Countries(), second.Countries()) {
		t.Error("loading the same file twice produced different country indexes")
	}
}

func TestLoadFile_CSV(t *testing.T) {
	path := writeFixture(t, "GlobalLandTemperaturesByCountry.csv", fixtureCSV)

	ds, err := LoadFile(path, FormatAuto)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	records := ds.Records()
	if len(records) != 5 {
		t.Fatalf("got %d records, want 5", len(records))
	}
	if records[0] != (models.ClimateRecord{Date: "1850-01-01", AverageTemperature: "10.0", AverageTemperatureUncertainty: "1.2", Country: "Testland"}) {
		t.Errorf("records[0] = %+v", records[0])
	}
	if records[2].AverageTemperature != "" {
		t.Errorf("empty cell should stay empty, got %q", records[2].AverageTemperature)
	}
	if records[4].AverageTemperature != "NA" {
		t.Errorf("NA cell should stay verbatim, got %q", records[4].AverageTemperature)
	}
	if records[4].Country != "Bonaire, Saint Eustatius And Saba" {
		t.Errorf("quoted country = %q", records[4].Country)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		format  string
	}{
		{"malformed JSON", "climate.json", `[{"Country": "Testland",`, FormatAuto},
		{"not an array", "climate.json", `{"Country":"Testland"}`, FormatAuto},
		{"non-string country", "climate.json", `[{"Country":10,"AverageTemperature":"1"}]`, FormatAuto},
		{"boolean temperature", "climate.json", `[{"Country":"Testland","AverageTemperature":true}]`, FormatAuto},
		{"array of numbers", "climate.json", `[1, 2]`, FormatAuto},
		{"top-level null", "climate.json", `null`, FormatAuto},
		{"empty file", "climate.json", ``, FormatAuto},
		{"trailing data", "climate.json", `[] []`, FormatAuto},
		{"trailing bracket", "climate.json", `[] ]`, FormatAuto},
		{"CSV without header", "climate.csv", ``, FormatAuto},
		{"CSV header missing column", "climate.csv", "dt,Country\n", FormatAuto},
		{"CSV missing column", "climate.csv", "dt,Country\n1850-01-01,Testland\n", FormatAuto},
		{"unknown extension", "climate.txt", fixtureJSON, FormatAuto},
		{"unknown format", "climate.json", fixtureJSON, "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFixture(t, tt.file, tt.content)
			if _, err := LoadFile(path, tt.format); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "absent.json"), FormatAuto)
		if err == nil {
			t.Fatal("expected error for missing file")
		}
		if !os.IsNotExist(errors.Cause(err)) {
			t.Errorf("expected not-exist cause, got %v", err)
		}
	})
}

func TestLoadFile_Empty(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"JSON empty array", "climate.json", " [ ]\n"},
		{"CSV header only", "climate.csv", "dt,AverageTemperature,AverageTemperatureUncertainty,Country\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := LoadFile(writeFixture(t, tt.file, tt.content), FormatAuto)
			if err != nil {
				t.Fatalf("LoadFile() error = %v", err)
			}
			if ds.Len() != 0 || len(ds.Countries()) != 0 {
				t.Errorf("Len() = %d Countries() = %v, want empty", ds.Len(), ds.Countries())
			}
		})
	}
}

func TestLoadFile_NumericJSONValues(t *testing.T) {
	path := writeFixture(t, "climate.json", `[
  {"dt":"1850-01-01","AverageTemperature":10.5,"AverageTemperatureUncertainty":1.2,"Country":"Testland"},
  {"dt":"1850-02-01","AverageTemperature":"19.5","Country":"Testland"}
]`)

	ds, err := LoadFile(path, FormatAuto)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	got := ds.Filter("Testland")
	if len(got) != 2 || got[0].AverageTemperature != "10.5" || got[0].AverageTemperatureUncertainty != "1.2" || got[1].AverageTemperature != "19.5" {
		t.Errorf("Filter() = %+v", got)
	}
}

func TestLoadFile_ExplicitFormatOverridesExtension(t *testing.T) {
	path := writeFixture(t, "climate.dat", fixtureJSON)

	ds, err := LoadFile(path, FormatJSON)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if ds.Len() != 3 {
		t.Errorf("Len() = %d, want 3", ds.Len())
	}
}

func TestDataset_Filter(t *testing.T) {
	ds := New([]models.ClimateRecord{
		{Country: "Testland", AverageTemperature: "1"},
		{Country: "testland", AverageTemperature: "2"},
		{Country: "Testland ", AverageTemperature: "3"},
		{Country: "Other", AverageTemperature: "4"},
		{Country: "Testland", AverageTemperature: "5"},
	})

	got := ds.Filter("Testland")
	if len(got) != 2 {
		t.Fatalf("Filter() returned %d records, want 2", len(got))
	}
	if got[0].AverageTemperature != "1" || got[1].AverageTemperature != "5" {
		t.Errorf("Filter() should preserve load order, got %+v", got)
	}

	if got := ds.Filter("Nowhere"); len(got) != 0 {
		t.Errorf("Filter(Nowhere) = %+v, want empty", got)
	}
	if got := ds.Filter(""); len(got) != 0 {
		t.Errorf("Filter(\"\") = %+v, want empty", got)
	}
	if ds.Count("Testland") != 2 || ds.Count("Nowhere") != 0 {
		t.Errorf("Count mismatch: Testland=%d Nowhere=%d", ds.Count("Testland"), ds.Count("Nowhere"))
	}
}

func TestDataset_Countries(t *testing.T) {
	ds := New([]models.ClimateRecord{
		{Country: "Zimbabwe"},
		{Country: "Albania"},
		{Country: "Zimbabwe"},
		{Country: "Chile"},
	})

	want := []models.CountrySummary{
		{Country: "Albania", Records: 1},
		{Country: "Chile", Records: 1},
		{Country: "Zimbabwe", Records: 2},
	}
	if got := ds.Countries(); !reflect.DeepEqual(got, want) {
		t.Errorf("Countries() = %+v, want %+v", got, want)
	}
}

func TestDataset_IsolatedFromCaller(t *testing.T) {
	input := []models.ClimateRecord{{Country: "Testland", AverageTemperature: "1"}}
	ds := New(input)

	input[0].Country = "Changed"
	out := ds.Records()
	out[0].AverageTemperature = "99"

	if got := ds.Filter("Testland"); len(got) != 1 || got[0].AverageTemperature != "1" {
		t.Errorf("dataset was mutated through caller slices: %+v", got)
	}
}

func TestDataset_ConcurrentReads(t *testing.T) {
	path := writeFixture(t, "climate.json", fixtureJSON)
	ds, err := LoadFile(path, FormatAuto)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if n := len(ds.Filter("Testland")); n != 2 {
				t.Errorf("Filter() returned %d records, want 2", n)
			}
			if n := ds.Count("Other"); n != 1 {
				t.Errorf("Count() = %d, want 1", n)
			}
		}()
	}
	wg.Wait()
}

type staticSource struct {
	records []models.ClimateRecord
	err     error
}

func (s staticSource) Name() string { return "static" }

func (s staticSource) LoadAll(context.Context) ([]models.ClimateRecord, error) {
	return s.records, s.err
}

func TestLoader_Load(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewStructuredLogger("climate-api", "test", logging.InfoLevel)
	logger.SetOutput(&buf)
	collector := metrics.NewCollector("climate_test", prometheus.NewRegistry())

	loader := NewLoader(logger, collector)
	ds, err := loader.Load(context.Background(), staticSource{records: []models.ClimateRecord{
		{Country: "Testland"}, {Country: "Other"}, {Country: "Testland"},
	}})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if ds.Len() != 3 {
		t.Errorf("Len() = %d, want 3", ds.Len())
	}
	if got := testutil.ToFloat64(collector.DatasetRecords); got != 3 {
		t.Errorf("DatasetRecords = %v, want 3", got)
	}
	if got := testutil.ToFloat64(collector.DatasetCountries); got != 2 {
		t.Errorf("DatasetCountries = %v, want 2", got)
	}
	if !strings.Contains(buf.String(), "[DATASET_LOAD_COMPLETE]") {
		t.Errorf("expected completion log, got %s", buf.String())
	}
}

func TestLoader_LoadFailure(t *testing.T) {
	loader := NewLoader(logging.NewNopLogger(), metrics.NewCollector("climate_test", prometheus.NewRegistry()))

	_, err := loader.Load(context.Background(), staticSource{err: os.ErrPermission})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Cause(err) != os.ErrPermission {
		t.Errorf("cause = %v, want os.ErrPermission", errors.Cause(err))
	}
	if !strings.Contains(err.Error(), "static") {
		t.Errorf("error should name the source, got %v", err)
	}
}
