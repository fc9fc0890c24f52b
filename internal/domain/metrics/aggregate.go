package metrics

import (
	"sort"
	"time"

	"github.com/hospital/hospital-backend/internal/domain/patient"
)

// TopDiseasesLimit caps the ranked disease table of an Overview.
const TopDiseasesLimit = 10

// UnknownStatus labels records without a status in a StatusSummary.
const UnknownStatus = "unknown"

// TopItem is one ranked entry of a histogram.
type TopItem struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Overview is the aggregate computed for GET /admin/metrics/overview.
type Overview struct {
	TotalPatients int            `json:"total_patients"`
	AvgBMI        float64        `json:"avg_bmi"`
	CountsBySex   map[string]int `json:"counts_by_sex"`
	AvgAgeYears   float64        `json:"avg_age_years"`
	TopDiseases   []TopItem      `json:"top_diseases"`
}

// StatusSummary is the aggregate computed for GET /admin/metrics.
type StatusSummary struct {
	TotalPatients int            `json:"totalPatients"`
	ByStatus      map[string]int `json:"byStatus"`
}

// Member is a record that passed the age filter, with its computed age.
type Member struct {
	*patient.Record
	AgeYears float64
}

// Filter keeps the records whose age on asOf lies within bounds. Records
// without a parseable date of birth are skipped.
func Filter(records []*patient.Record, bounds Bounds, asOf time.Time) []Member {
	members := make([]Member, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		age, err := AgeInYears(r.DateOfBirth, asOf)
		if err != nil {
			continue
		}
		if !bounds.Contains(age) {
			continue
		}
		members = append(members, Member{Record: r, AgeYears: age})
	}
	return members
}

// Average returns the arithmetic mean rounded to two decimals, or 0 for no
// values.
func Average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return round2(sum / float64(len(values)))
}

// Counter is a frequency table that remembers the order keys were first seen.
type Counter struct {
	order  []string
	counts map[string]int
}

// NewCounter returns an empty Counter.
func NewCounter() *Counter {
	return &Counter{counts: make(map[string]int)}
}

// Add counts key once. Empty keys are ignored.
func (c *Counter) Add(key string) {
	if key == "" {
		return
	}
	if _, seen := c.counts[key]; !seen {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

// Len returns the number of distinct keys.
func (c *Counter) Len() int {
	return len(c.order)
}

// Map returns a copy of the counts.
func (c *Counter) Map() map[string]int {
	out := make(map[string]int, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

// Top returns up to n entries by descending count. Equal counts keep
// first-seen order. n <= 0 returns every entry.
func (c *Counter) Top(n int) []TopItem {
	items := make([]TopItem, 0, len(c.order))
	for _, k := range c.order {
		items = append(items, TopItem{Name: k, Count: c.counts[k]})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Count > items[j].Count
	})
	if n > 0 && len(items) > n {
		items = items[:n]
	}
	return items
}

// Histogram counts every non-empty value.
func Histogram(values []string) *Counter {
	c := NewCounter()
	for _, v := range values {
		c.Add(v)
	}
	return c
}

// Aggregate computes the Overview of records within bounds on asOf. The
// input records are not modified.
func Aggregate(records []*patient.Record, bounds Bounds, asOf time.Time) Overview {
	members := Filter(records, bounds, asOf)

	bmis := make([]float64, 0, len(members))
	ages := make([]float64, 0, len(members))
	sexes := NewCounter()
	diseases := NewCounter()
	for _, m := range members {
		bmis = append(bmis, m.BMIOrZero())
		ages = append(ages, m.AgeYears)
		sexes.Add(m.Sex)
		for _, d := range m.Diseases {
			diseases.Add(d)
		}
	}

	return Overview{
		TotalPatients: len(members),
		AvgBMI:        Average(bmis),
		CountsBySex:   sexes.Map(),
		AvgAgeYears:   Average(ages),
		TopDiseases:   diseases.Top(TopDiseasesLimit),
	}
}

// DiseaseCounts returns the disease histogram of records within bounds.
func DiseaseCounts(records []*patient.Record, bounds Bounds, asOf time.Time) map[string]int {
	c := NewCounter()
	for _, m := range Filter(records, bounds, asOf) {
		for _, d := range m.Diseases {
			c.Add(d)
		}
	}
	return c.Map()
}

// MedicationCounts returns the medication histogram of records within bounds.
func MedicationCounts(records []*patient.Record, bounds Bounds, asOf time.Time) map[string]int {
	c := NewCounter()
	for _, m := range Filter(records, bounds, asOf) {
		for _, med := range m.Medications {
			c.Add(med)
		}
	}
	return c.Map()
}

// Statuses counts records by status, labelling a missing status "unknown".
// Without bounds every record is counted, including those lacking a date of
// birth; with bounds only records passing Filter are.
func Statuses(records []*patient.Record, bounds Bounds, asOf time.Time) StatusSummary {
	selected := records
	if !bounds.IsZero() {
		selected = selected[:0:0]
		for _, m := range Filter(records, bounds, asOf) {
			selected = append(selected, m.Record)
		}
	}

	c := NewCounter()
	total := 0
	for _, r := range selected {
		if r == nil {
			continue
		}
		total++
		status := r.Status
		if status == "" {
			status = UnknownStatus
		}
		c.Add(status)
	}
	return StatusSummary{TotalPatients: total, ByStatus: c.Map()}
}
