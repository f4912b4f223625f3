package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"

	"climate-api/internal/models"
	"climate-api/pkg/logging"
	"climate-api/pkg/metrics"
)

// Supported file formats
const (
	FormatAuto = "auto"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Source produces the full record sequence in a deterministic order
type Source interface {
	Name() string
	LoadAll(ctx context.Context) ([]models.ClimateRecord, error)
}

// Loader runs a Source once and wraps the result in a Dataset
type Loader struct {
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewLoader creates a new dataset loader
func NewLoader(logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Loader {
	return &Loader{
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Load reads every record from src. Any error means no dataset: callers are
// expected to treat it as fatal.
func (l *Loader) Load(ctx context.Context, src Source) (*Dataset, error) {
	timer := l.metrics.NewTimer(l.metrics.DatasetLoadDuration)

	l.logger.Info(ctx, "[DATASET_LOAD_START] Loading climate dataset", logging.Fields{
		"source": src.Name(),
	})

	records, err := src.LoadAll(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "load dataset from %s", src.Name())
	}

	ds := New(records)
	duration := timer.ObserveDuration()
	l.metrics.RecordDataset(ds.Len(), len(ds.countries))

	if ds.Len() == 0 {
		l.logger.Warn(ctx, "[DATASET_EMPTY] Dataset contains no records", logging.Fields{
			"source": src.Name(),
		})
	}

	l.logger.Info(ctx, "[DATASET_LOAD_COMPLETE] Climate dataset loaded", logging.Fields{
		"source":      src.Name(),
		"records":     ds.Len(),
		"countries":   len(ds.countries),
		"duration_ms": duration.Milliseconds(),
	})

	return ds, nil
}

// FileSource reads records from a JSON array or CSV file
type FileSource struct {
	Path   string
	Format string
}

// Name identifies the source in logs
func (s FileSource) Name() string {
	return "file:" + s.Path
}

// LoadAll reads and decodes the whole file
func (s FileSource) LoadAll(ctx context.Context) ([]models.ClimateRecord, error) {
	format, err := resolveFormat(s.Path, s.Format)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return nil, errors.Wrap(err, "open dataset file")
	}
	defer f.Close()

	if format == FormatCSV {
		return DecodeCSV(f)
	}
	return DecodeJSON(f)
}

// LoadFile is a shortcut for loading a FileSource without a Loader
func LoadFile(path, format string) (*Dataset, error) {
	records, err := FileSource{Path: path, Format: format}.LoadAll(context.Background())
	if err != nil {
		return nil, err
	}
	return New(records), nil
}

func resolveFormat(path, format string) (string, error) {
	switch strings.ToLower(format) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case "", FormatAuto:
	default:
		return "", errors.Errorf("unsupported dataset format %q", format)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", errors.Errorf("cannot infer dataset format from %q; set DATASET_FORMAT", path)
	}
}

// DecodeJSON decodes a top-level JSON array of record objects. Anything
// other than exactly one array, including null, is rejected.
func DecodeJSON(r io.Reader) ([]models.ClimateRecord, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, errors.Wrap(err, "decode JSON dataset")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, errors.Errorf("decode JSON dataset: expected top-level array, got %v", tok)
	}

	records := make([]models.ClimateRecord, 0)
	for dec.More() {
		var rec models.ClimateRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, errors.Wrapf(err, "decode JSON dataset: record %d", len(records))
		}
		records = append(records, rec)
	}

	// Closing bracket.
	if _, err := dec.Token(); err != nil {
		return nil, errors.Wrap(err, "decode JSON dataset")
	}
	if tok, err := dec.Token(); err != io.EOF {
		if err != nil {
			return nil, errors.Wrap(err, "decode JSON dataset")
		}
		return nil, errors.Errorf("decode JSON dataset: unexpected %v after top-level array", tok)
	}

	return records, nil
}

// DecodeCSV decodes a CSV file with a header row. Country and
// AverageTemperature columns are required; dt and
// AverageTemperatureUncertainty are read when present. Every cell is kept as
// text, including empty ones.
func DecodeCSV(r io.Reader) ([]models.ClimateRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read CSV dataset")
	}

	// gota refuses a frame without rows, so a header-only file is handled here.
	header, rows, err := peekCSV(data)
	if err != nil {
		return nil, errors.Wrap(err, "decode CSV dataset")
	}
	if !rows {
		if err := requireColumns(header); err != nil {
			return nil, err
		}
		return []models.ClimateRecord{}, nil
	}

	df := dataframe.ReadCSV(bytes.NewReader(data),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues([]string{}),
	)
	if df.Err != nil {
		return nil, errors.Wrap(df.Err, "decode CSV dataset")
	}

	if err := requireColumns(df.Names()); err != nil {
		return nil, err
	}
	columns := make(map[string]bool, df.Ncol())
	for _, name := range df.Names() {
		columns[name] = true
	}

	column := func(name string) []string {
		if !columns[name] {
			return nil
		}
		return df.Col(name).Records()
	}

	country := column("Country")
	temperature := column("AverageTemperature")
	date := column("dt")
	uncertainty := column("AverageTemperatureUncertainty")

	records := make([]models.ClimateRecord, df.Nrow())
	for i := range records {
		records[i].Country = country[i]
		records[i].AverageTemperature = temperature[i]
		if date != nil {
			records[i].Date = date[i]
		}
		if uncertainty != nil {
			records[i].AverageTemperatureUncertainty = uncertainty[i]
		}
	}

	return records, nil
}

func requireColumns(names []string) error {
	for _, required := range []string{"Country", "AverageTemperature"} {
		if !slices.Contains(names, required) {
			return errors.Errorf("decode CSV dataset: missing column %q", required)
		}
	}
	return nil
}

// peekCSV returns the header row and whether at least one data row follows
func peekCSV(data []byte) ([]string, bool, error) {
	cr := csv.NewReader(bytes.NewReader(data))
	header, err := cr.Read()
	if err == io.EOF {
		return nil, false, errors.New("missing header row")
	}
	if err != nil {
		return nil, false, err
	}
	if _, err := cr.Read(); err == io.EOF {
		return header, false, nil
	}
	return header, true, nil
}
