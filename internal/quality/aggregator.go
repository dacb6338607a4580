// Package quality computes batch metrics and judges them against a gate policy.
package quality

import (
	"math"
	"sort"

	"github.com/rpattn/enrollgate/internal/domain"
)

// DefaultExampleLimit bounds the record ids kept per rule.
const DefaultExampleLimit = 5

type example struct {
	line     int
	recordID string
}

// Aggregator accumulates decisions without buffering them. Add and Merge are
// order-independent: examples keep the lowest source lines per rule.
// An Aggregator is not safe for concurrent use; merge per-worker instances instead.
type Aggregator struct {
	limit    int
	total    int
	valid    int
	failed   map[string]int
	examples map[string][]example
}

// NewAggregator creates an aggregator keeping at most exampleLimit examples per rule.
func NewAggregator(exampleLimit int) *Aggregator {
	if exampleLimit < 0 {
		exampleLimit = 0
	}
	return &Aggregator{
		limit:    exampleLimit,
		failed:   make(map[string]int),
		examples: make(map[string][]example),
	}
}

// Add folds one decision into the counts.
func (a *Aggregator) Add(d domain.RecordDecision) {
	a.total++
	if d.Accepted() {
		a.valid++
		return
	}
	for _, f := range d.Failures() {
		a.failed[f.RuleID]++
		a.addExample(f.RuleID, example{line: d.Line, recordID: d.RecordID})
	}
}

// Merge folds other into a. other is left unchanged.
func (a *Aggregator) Merge(other *Aggregator) {
	if other == nil {
		return
	}
	a.total += other.total
	a.valid += other.valid
	for id, n := range other.failed {
		a.failed[id] += n
	}
	for id, exs := range other.examples {
		for _, ex := range exs {
			a.addExample(id, ex)
		}
	}
}

// Total returns the number of decisions seen.
func (a *Aggregator) Total() int { return a.total }

func (a *Aggregator) addExample(ruleID string, ex example) {
	if a.limit == 0 {
		return
	}
	exs := a.examples[ruleID]
	i := sort.Search(len(exs), func(i int) bool { return less(ex, exs[i]) })
	if i >= a.limit {
		return
	}
	exs = append(exs, example{})
	copy(exs[i+1:], exs[i:])
	exs[i] = ex
	if len(exs) > a.limit {
		exs = exs[:a.limit]
	}
	a.examples[ruleID] = exs
}

func less(x, y example) bool {
	if x.line != y.line {
		return x.line < y.line
	}
	return x.recordID < y.recordID
}

// Metrics snapshots the aggregate. Every catalog rule gets a detail entry;
// rules seen in decisions but absent from the catalog are appended sorted.
func (a *Aggregator) Metrics(catalog []domain.RuleInfo) domain.QualityMetrics {
	invalid := a.total - a.valid
	m := domain.QualityMetrics{
		Total:             a.total,
		Valid:             a.valid,
		Invalid:           invalid,
		AcceptanceRate:    rate(a.valid, a.total),
		RejectionRate:     rate(invalid, a.total),
		FailureRateByRule: make(map[string]float64, len(catalog)),
	}

	seen := make(map[string]struct{}, len(catalog))
	for _, info := range catalog {
		seen[info.RuleID] = struct{}{}
		m.RuleDetails = append(m.RuleDetails, a.detail(info.RuleID, info.Severity))
	}

	var unknown []string
	for id := range a.failed {
		if _, ok := seen[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	sort.Strings(unknown)
	for _, id := range unknown {
		m.RuleDetails = append(m.RuleDetails, a.detail(id, ""))
	}

	for _, d := range m.RuleDetails {
		m.FailureRateByRule[d.RuleID] = d.FailureRate
	}
	return m
}

func (a *Aggregator) detail(ruleID string, severity domain.Severity) domain.RuleDetail {
	failed := a.failed[ruleID]
	exs := a.examples[ruleID]
	ids := make([]string, len(exs))
	for i, ex := range exs {
		ids[i] = ex.recordID
	}
	passRate := 0.0
	if a.total > 0 {
		passRate = rate(a.total-failed, a.total)
	}
	return domain.RuleDetail{
		RuleID:      ruleID,
		Severity:    severity,
		FailedCount: failed,
		PassRate:    passRate,
		FailureRate: rate(failed, a.total),
		Examples:    ids,
	}
}

func rate(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return Round(float64(n) / float64(total))
}

// Round rounds to four decimal places.
func Round(v float64) float64 {
	return math.Round(v*10000) / 10000
}
