package hours

import (
	"sort"
	"time"

	"github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/adminsvc/models"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Status classifies one worked day.
type Status string

const (
	StatusIncomplete Status = "incomplete"
	StatusFlexible   Status = "flexible"
	StatusOvertime   Status = "overtime"
	StatusNormal     Status = "normal"
	StatusShortfall  Status = "shortfall"
	StatusSickLeave  Status = "sick_leave"
	StatusVacation   Status = "vacation"
)

func statusForSpecial(t models.SpecialDayType) Status {
	if t == models.SickLeave {
		return StatusSickLeave
	}
	return StatusVacation
}

// Summary is the derived result for one card and one day. It is never
// persisted; discard and recompute freely. Worked and Delta stay unrounded
// so range aggregation can sum them before any rounding happens.
type Summary struct {
	Date          models.Date
	FirstArrival  time.Time
	LastDeparture time.Time
	Worked        float64
	Status        Status
	Delta         float64 // overtime or shortfall magnitude, zero otherwise
}

// Round2 converts an hour figure to its display form. Only call this at
// the edge: rounding per day before summing gives a different, wrong total.
func Round2(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

// Compute runs the open/closed-interval machine over one day's events.
// An Arrival opens an interval only when none is open; a Departure closes
// the open one or is ignored. An interval still open at day's end counts
// nothing. A special-day override forces zero hours and the override
// status no matter what the events say.
func Compute(date models.Date, events []models.Event, dailyHours float64, override *models.SpecialDayType) Summary {
	sorted := make([]models.Event, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	sum := Summary{Date: date}
	var open time.Time
	var working bool
	for _, e := range sorted {
		switch e.Kind {
		case models.Arrival:
			if !working {
				open = e.Timestamp
				working = true
				if sum.FirstArrival.IsZero() {
					sum.FirstArrival = e.Timestamp
				}
			}
		case models.Departure:
			if working {
				sum.Worked += e.Timestamp.Sub(open).Hours()
				sum.LastDeparture = e.Timestamp
				working = false
			}
		}
	}

	if sum.Worked < 0 {
		log.Warnf("negative accumulated hours on %s, clamping to zero", date)
		sum.Worked = 0
	}

	if override != nil {
		sum.Worked = 0
		sum.Status = statusForSpecial(*override)
		return sum
	}

	switch {
	case sum.Worked == 0:
		sum.Status = StatusIncomplete
	case dailyHours == models.FlexibleHours:
		sum.Status = StatusFlexible
	case sum.Worked > dailyHours:
		sum.Status = StatusOvertime
		sum.Delta = sum.Worked - dailyHours
	case sum.Worked == dailyHours:
		sum.Status = StatusNormal
	default:
		sum.Status = StatusShortfall
		sum.Delta = dailyHours - sum.Worked
	}
	return sum
}

// ComputeRange produces one Summary per day with events, plus one for
// every special day in the map that has no events, sorted chronologically.
func ComputeRange(events []models.Event, dailyHours float64, specials map[models.Date]models.SpecialDayType) []Summary {
	byDay := make(map[models.Date][]models.Event)
	for _, e := range events {
		d := models.DateOf(e.Timestamp)
		byDay[d] = append(byDay[d], e)
	}

	summaries := make([]Summary, 0, len(byDay)+len(specials))
	for d, dayEvents := range byDay {
		var override *models.SpecialDayType
		if t, ok := specials[d]; ok {
			override = &t
		}
		summaries = append(summaries, Compute(d, dayEvents, dailyHours, override))
	}
	for d, t := range specials {
		if _, ok := byDay[d]; ok {
			continue
		}
		override := t
		summaries = append(summaries, Compute(d, nil, dailyHours, &override))
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Date.Before(summaries[j].Date.Time)
	})
	return summaries
}

// Totals aggregates a range for reporting. The per-day deltas are summed
// unrounded and rounded once at the end.
type Totals struct {
	Days      int
	Worked    decimal.Decimal
	Overtime  decimal.Decimal
	Shortfall decimal.Decimal
}

func Total(summaries []Summary) Totals {
	var worked, over, short float64
	for _, s := range summaries {
		worked += s.Worked
		switch s.Status {
		case StatusOvertime:
			over += s.Delta
		case StatusShortfall:
			short += s.Delta
		}
	}
	return Totals{
		Days:      len(summaries),
		Worked:    Round2(worked),
		Overtime:  Round2(over),
		Shortfall: Round2(short),
	}
}
