// Package dataset holds the climate records loaded once at startup.
//
// A Dataset is never modified after New returns, so any number of request
// goroutines may read it without synchronization.
package dataset

import (
	"sort"

	"github.com/dolthub/swiss"

	"climate-api/internal/models"
)

// Dataset is an immutable, ordered collection of climate records
type Dataset struct {
	records   []models.ClimateRecord
	counts    *swiss.Map[string, int]
	countries []models.CountrySummary
}

// New builds a Dataset from records, preserving their order. The slice is
// copied so later changes by the caller are not observed.
func New(records []models.ClimateRecord) *Dataset {
	owned := make([]models.ClimateRecord, len(records))
	copy(owned, records)

	counts := swiss.NewMap[string, int](uint32(len(owned)/64 + 8))
	for i := range owned {
		n, _ := counts.Get(owned[i].Country)
		counts.Put(owned[i].Country, n+1)
	}

	countries := make([]models.CountrySummary, 0, counts.Count())
	counts.Iter(func(country string, n int) bool {
		countries = append(countries, models.CountrySummary{Country: country, Records: n})
		return false
	})
	sort.Slice(countries, func(i, j int) bool {
		return countries[i].Country < countries[j].Country
	})

	return &Dataset{
		records:   owned,
		counts:    counts,
		countries: countries,
	}
}

// Len returns the number of records
func (d *Dataset) Len() int {
	return len(d.records)
}

// Records returns a copy of all records in load order
func (d *Dataset) Records() []models.ClimateRecord {
	out := make([]models.ClimateRecord, len(d.records))
	copy(out, d.records)
	return out
}

// Filter returns every record whose Country equals country exactly
// (case-sensitive, full string), in load order.
func (d *Dataset) Filter(country string) []models.ClimateRecord {
	n, ok := d.counts.Get(country)
	if !ok {
		return nil
	}

	out := make([]models.ClimateRecord, 0, n)
	for i := range d.records {
		if d.records[i].Country == country {
			out = append(out, d.records[i])
		}
	}
	return out
}

// Count returns how many records belong to country
func (d *Dataset) Count(country string) int {
	n, _ := d.counts.Get(country)
	return n
}

// Countries returns the distinct countries sorted by name
func (d *Dataset) Countries() []models.CountrySummary {
	out := make([]models.CountrySummary, len(d.countries))
	copy(out, d.countries)
	return out
}
