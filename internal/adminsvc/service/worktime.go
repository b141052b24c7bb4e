package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/adminsvc/dataset"
	"github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/adminsvc/hours"
	"github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/adminsvc/models"
	"github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/adminsvc/records"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Worktime answers the reporting questions the admin UI asks: hours per
// employee, hours per group, archival exports, record purges. Everything
// is derived on demand from the day files and the current dataset.
type Worktime struct {
	records *records.Store
	data    *dataset.Dataset
}

func NewWorktime(rec *records.Store, data *dataset.Dataset) *Worktime {
	return &Worktime{records: rec, data: data}
}

// EmployeeReport carries the per-day summaries and totals for one
// employee over a range.
type EmployeeReport struct {
	Employee models.Employee `json:"employee"`
	Days     []hours.Summary `json:"days"`
	Totals   hours.Totals    `json:"totals"`
}

// EmployeeSummaries computes the report for one employee. Days with no
// events and no special marking are absent from the result.
func (w *Worktime) EmployeeSummaries(ctx context.Context, id uuid.UUID, from, to models.Date) (*EmployeeReport, error) {
	emp, ok := w.data.EmployeeByID(id)
	if !ok {
		return nil, dataset.ErrEmployeeNotFound
	}
	events := w.cardEvents(ctx, emp.CardID, from, to)
	specials := w.data.SpecialsFor(emp.CardID, from, to)
	days := hours.ComputeRange(events, emp.DailyHours, specials)
	return &EmployeeReport{
		Employee: emp,
		Days:     days,
		Totals:   hours.Total(days),
	}, nil
}

// GroupSummaries computes one report per member of the group.
func (w *Worktime) GroupSummaries(ctx context.Context, groupID uuid.UUID, from, to models.Date) ([]EmployeeReport, error) {
	members := w.data.GroupMembers(groupID)
	reports := make([]EmployeeReport, 0, len(members))
	for _, emp := range members {
		r, err := w.EmployeeSummaries(ctx, emp.ID, from, to)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, nil
}

// ArchiveWorker renders an employee's range as a semicolon CSV document
// for offline archival before the records are purged.
func (w *Worktime) ArchiveWorker(ctx context.Context, id uuid.UUID, from, to models.Date) ([]byte, error) {
	report, err := w.EmployeeSummaries(ctx, id, from, to)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	b.WriteString("date;first_arrival;last_departure;worked;status\n")
	for _, day := range report.Days {
		b.WriteString(day.Date.String())
		b.WriteByte(';')
		if !day.FirstArrival.IsZero() {
			b.WriteString(day.FirstArrival.Format("15:04:05"))
		}
		b.WriteByte(';')
		if !day.LastDeparture.IsZero() {
			b.WriteString(day.LastDeparture.Format("15:04:05"))
		}
		b.WriteByte(';')
		b.WriteString(hours.Round2(day.Worked).String())
		b.WriteByte(';')
		b.WriteString(string(day.Status))
		b.WriteByte('\n')
	}
	b.WriteString(fmt.Sprintf("total;;;%s;\n", report.Totals.Worked))
	return []byte(b.String()), nil
}

// PurgeWorker strips one employee's events from every day file in the
// range. The employee record itself is untouched; removing it from the
// dataset is a separate administrative step.
func (w *Worktime) PurgeWorker(ctx context.Context, id uuid.UUID, from, to models.Date) (int, error) {
	emp, ok := w.data.EmployeeByID(id)
	if !ok {
		return 0, dataset.ErrEmployeeNotFound
	}
	removed, err := w.records.DeleteAllForCard(ctx, emp.CardID, from, to)
	if removed > 0 {
		log.Infof("purged %d events for %s (%s to %s)", removed, emp.Name, from, to)
	}
	return removed, err
}

// cardEvents narrows a range read to one card.
func (w *Worktime) cardEvents(ctx context.Context, cardID string, from, to models.Date) []models.Event {
	all := w.records.ReadRange(ctx, from, to)
	var out []models.Event
	for _, e := range all {
		if e.CardID == cardID {
			out = append(out, e)
		}
	}
	return out
}
