// Package analytics derives availability figures from recorded downtime cycles.
package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/benmeehan/loomwatch/internal/models"
	"github.com/benmeehan/loomwatch/internal/storage"
)

// KPI summarises a period. Times are in minutes and percentages in 0..100. OEE only has the
// availability factor since no performance or quality data is collected.
type KPI struct {
	Machine          string    `json:"machine,omitempty"`
	From             time.Time `json:"from"`
	To               time.Time `json:"to"`
	Stops            int       `json:"stops"`
	DowntimeMinutes  float64   `json:"downtime_minutes"`
	ProducingMinutes float64   `json:"producing_minutes"`
	Availability     float64   `json:"availability"`
	MTBF             float64   `json:"mtbf"`
	MTTR             float64   `json:"mttr"`
	OEE              float64   `json:"oee"`
}

// Offender is a machine ranked by how often it stopped.
type Offender struct {
	Machine string  `json:"machine"`
	Stops   int     `json:"stops"`
	Minutes float64 `json:"minutes"`
}

// ComputeKPIs calculates the figures for closed cycles in [from, to). machines is the number
// of machines the cycles belong to; the observable time is the period length times machines.
func ComputeKPIs(cycles []models.DowntimeCycle, from, to time.Time, machines int) KPI {
	machines = max(machines, 1)
	kpi := KPI{From: from, To: to}

	for _, c := range cycles {
		if c.IsOpen() {
			continue
		}
		kpi.Stops++
		kpi.DowntimeMinutes += c.DurationMinutes
	}

	total := to.Sub(from).Minutes() * float64(machines)
	if total < 0 {
		total = 0
	}
	kpi.ProducingMinutes = math.Max(total-kpi.DowntimeMinutes, 0)

	if total > 0 {
		kpi.Availability = kpi.ProducingMinutes / total * 100
	}
	if kpi.Stops > 0 {
		kpi.MTTR = kpi.DowntimeMinutes / float64(kpi.Stops)
		kpi.MTBF = kpi.ProducingMinutes / float64(kpi.Stops)
	} else {
		kpi.MTBF = total
	}
	kpi.OEE = kpi.Availability

	kpi.DowntimeMinutes = round2(kpi.DowntimeMinutes)
	kpi.ProducingMinutes = round2(kpi.ProducingMinutes)
	kpi.Availability = round2(kpi.Availability)
	kpi.MTBF = round2(kpi.MTBF)
	kpi.MTTR = round2(kpi.MTTR)
	kpi.OEE = round2(kpi.OEE)
	return kpi
}

// TopOffenders ranks machines by number of closed cycles, then by total minutes.
func TopOffenders(cycles []models.DowntimeCycle, limit int) []Offender {
	byMachine := make(map[string]*Offender)
	for _, c := range cycles {
		if c.IsOpen() {
			continue
		}
		o, ok := byMachine[c.Machine]
		if !ok {
			o = &Offender{Machine: c.Machine}
			byMachine[c.Machine] = o
		}
		o.Stops++
		o.Minutes += c.DurationMinutes
	}

	offenders := make([]Offender, 0, len(byMachine))
	for _, o := range byMachine {
		o.Minutes = round2(o.Minutes)
		offenders = append(offenders, *o)
	}
	sort.Slice(offenders, func(i, j int) bool {
		a, b := offenders[i], offenders[j]
		if a.Stops != b.Stops {
			return a.Stops > b.Stops
		}
		if a.Minutes != b.Minutes {
			return a.Minutes > b.Minutes
		}
		return a.Machine < b.Machine
	})

	if limit > 0 && len(offenders) > limit {
		offenders = offenders[:limit]
	}
	return offenders
}

// DowntimeByShift sums the minutes of closed cycles per shift. Every shift is present.
func DowntimeByShift(cycles []models.DowntimeCycle) map[models.Shift]float64 {
	totals := make(map[models.Shift]float64, len(models.Shifts))
	for _, s := range models.Shifts {
		totals[s] = 0
	}
	for _, c := range cycles {
		if c.IsOpen() {
			continue
		}
		totals[c.Shift] += c.DurationMinutes
	}
	for s, v := range totals {
		totals[s] = round2(v)
	}
	return totals
}

// Report bundles the analytics of one period.
type Report struct {
	KPI       KPI                      `json:"kpi"`
	Offenders []Offender               `json:"top_offenders"`
	ByShift   map[models.Shift]float64 `json:"downtime_by_shift"`
}

// Analyzer runs the analytics against the history store.
type Analyzer struct {
	history storage.History
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(history storage.History) *Analyzer {
	return &Analyzer{history: history}
}

// Report computes the figures of [from, to). An empty machine means the whole fleet, in which
// case fleetSize is the number of configured machines.
func (a *Analyzer) Report(ctx context.Context, machine string, from, to time.Time, fleetSize, limit int) (Report, error) {
	if !to.After(from) {
		return Report{}, fmt.Errorf("invalid period: %s is not after %s", to.Format(time.RFC3339), from.Format(time.RFC3339))
	}

	var (
		cycles []models.DowntimeCycle
		err    error
	)
	machines := fleetSize
	if machine != "" {
		cycles, err = a.history.CyclesByMachine(ctx, machine, from, to)
		machines = 1
	} else {
		cycles, err = a.history.CyclesByPeriod(ctx, from, to)
	}
	if err != nil {
		return Report{}, err
	}

	if machines < 1 {
		machines = distinctMachines(cycles)
	}

	kpi := ComputeKPIs(cycles, from, to, machines)
	kpi.Machine = machine

	return Report{
		KPI:       kpi,
		Offenders: TopOffenders(cycles, limit),
		ByShift:   DowntimeByShift(cycles),
	}, nil
}

func distinctMachines(cycles []models.DowntimeCycle) int {
	seen := make(map[string]struct{})
	for _, c := range cycles {
		seen[c.Machine] = struct{}{}
	}
	return len(seen)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
