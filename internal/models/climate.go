package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ClimateRecord is one row of the climate dataset. Values stay as text until
// a query needs them; AverageTemperature is parsed per request.
type ClimateRecord struct {
	Date                          string `json:"dt" db:"recorded_on"`
	AverageTemperature            string `json:"AverageTemperature" db:"average_temperature"`
	AverageTemperatureUncertainty string `json:"AverageTemperatureUncertainty" db:"average_temperature_uncertainty"`
	Country                       string `json:"Country" db:"country"`
}

// UnmarshalJSON accepts numeric values as well as strings for the date and
// temperature fields. Numbers keep their literal text.
func (r *ClimateRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		Date                          jsonText `json:"dt"`
		AverageTemperature            jsonText `json:"AverageTemperature"`
		AverageTemperatureUncertainty jsonText `json:"AverageTemperatureUncertainty"`
		Country                       string   `json:"Country"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = ClimateRecord{
		Date:                          string(raw.Date),
		AverageTemperature:            string(raw.AverageTemperature),
		AverageTemperatureUncertainty: string(raw.AverageTemperatureUncertainty),
		Country:                       raw.Country,
	}
	return nil
}

// jsonText is a JSON string or number held as text
type jsonText string

func (t *jsonText) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = jsonText(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*t = jsonText(n.String())
	return nil
}

// Temperature parses AverageTemperature as a float64
func (r *ClimateRecord) Temperature() (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(r.AverageTemperature), 64)
	if err != nil {
		return 0, &ParseError{
			Country: r.Country,
			Date:    r.Date,
			Value:   r.AverageTemperature,
			Err:     err,
		}
	}
	return v, nil
}

// Validate reports records that cannot be stored. Only the country is
// required; temperatures are checked at query time.
func (r *ClimateRecord) Validate() error {
	if strings.TrimSpace(r.Country) == "" {
		return &ValidationError{
			Field:   "Country",
			Value:   r.Country,
			Message: "country is required",
		}
	}
	return nil
}

// AggregateResult is the mean temperature of every record matching a country
type AggregateResult struct {
	Country string  `json:"country"`
	Mean    float64 `json:"mean"`
	// Count is the number of records that contributed to Mean.
	Count int `json:"count"`
	// Skipped is the number of matched records whose temperature did not parse.
	Skipped int `json:"skipped"`
}

// CountrySummary is a distinct country and how many records it has
type CountrySummary struct {
	Country string `json:"country"`
	Records int    `json:"records"`
}

// ErrEmptyKey is returned when the request path yields no country name
var ErrEmptyKey = errors.New("country name is empty")

// NotFoundError is returned when no record matches a country
type NotFoundError struct {
	Country string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no climate records for country %q", e.Country)
}

// IsTransient returns false as the dataset never changes after load
func (e *NotFoundError) IsTransient() bool {
	return false
}

// ParseError is returned when an AverageTemperature value is not a number
type ParseError struct {
	Country string
	Date    string
	Value   string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid AverageTemperature %q for %s at %s: %v", e.Value, e.Country, e.Date, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError represents a data validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}
