package hours

import (
	"testing"
	"time"

	"github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/adminsvc/models"
	"github.com/shopspring/decimal"
)

const testCard = "04a3f2b19c77de"

func ev(t *testing.T, kind models.EventKind, ts string) models.Event {
	t.Helper()
	parsed, err := time.ParseInLocation("2006-01-02 15:04:05", ts, time.UTC)
	if err != nil {
		t.Fatalf("bad timestamp in test: %v", err)
	}
	return models.Event{CardID: testCard, Timestamp: parsed, Kind: kind}
}

func TestComputeSingleShift(t *testing.T) {
	day := models.NewDate(2024, time.March, 4)
	events := []models.Event{
		ev(t, models.Arrival, "2024-03-04 08:00:00"),
		ev(t, models.Departure, "2024-03-04 16:30:00"),
	}

	sum := Compute(day, events, 8, nil)

	if sum.Worked != 8.5 {
		t.Fatalf("worked = %v, want 8.5", sum.Worked)
	}
	if sum.Status != StatusOvertime {
		t.Fatalf("status = %s, want %s", sum.Status, StatusOvertime)
	}
	if got := Round2(sum.Delta); !got.Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("delta = %s, want 0.5", got)
	}
	if !sum.FirstArrival.Equal(events[0].Timestamp) || !sum.LastDeparture.Equal(events[1].Timestamp) {
		t.Fatalf("arrival/departure bounds wrong: %v / %v", sum.FirstArrival, sum.LastDeparture)
	}
}

func TestComputeOrderIndependent(t *testing.T) {
	day := models.NewDate(2024, time.March, 4)
	ordered := []models.Event{
		ev(t, models.Arrival, "2024-03-04 08:00:00"),
		ev(t, models.Departure, "2024-03-04 12:00:00"),
		ev(t, models.Arrival, "2024-03-04 12:30:00"),
		ev(t, models.Departure, "2024-03-04 16:30:00"),
	}
	shuffled := []models.Event{ordered[3], ordered[0], ordered[2], ordered[1]}

	a := Compute(day, ordered, 8, nil)
	b := Compute(day, shuffled, 8, nil)

	if a.Worked != b.Worked || a.Status != b.Status {
		t.Fatalf("order changed the result: %+v vs %+v", a, b)
	}
	if a.Worked != 8 || a.Status != StatusNormal {
		t.Fatalf("two shifts of 4h should be a normal 8h day, got %v %s", a.Worked, a.Status)
	}
}

func TestComputeIgnoresDuplicateArrival(t *testing.T) {
	day := models.NewDate(2024, time.March, 4)
	events := []models.Event{
		ev(t, models.Arrival, "2024-03-04 08:00:00"),
		ev(t, models.Arrival, "2024-03-04 09:00:00"),
		ev(t, models.Departure, "2024-03-04 16:00:00"),
	}

	sum := Compute(day, events, 8, nil)

	if sum.Worked != 8 {
		t.Fatalf("worked = %v, the second arrival must not reset the interval", sum.Worked)
	}
	if !sum.FirstArrival.Equal(events[0].Timestamp) {
		t.Fatalf("first arrival = %v, want the 08:00 one", sum.FirstArrival)
	}
}

func TestComputeIgnoresOrphanDeparture(t *testing.T) {
	day := models.NewDate(2024, time.March, 4)
	events := []models.Event{
		ev(t, models.Departure, "2024-03-04 07:00:00"),
		ev(t, models.Arrival, "2024-03-04 08:00:00"),
		ev(t, models.Departure, "2024-03-04 16:00:00"),
	}

	sum := Compute(day, events, 8, nil)

	if sum.Worked != 8 {
		t.Fatalf("worked = %v, the orphan departure must count nothing", sum.Worked)
	}
	if !sum.FirstArrival.Equal(events[1].Timestamp) {
		t.Fatalf("first arrival = %v, want the 08:00 one", sum.FirstArrival)
	}
}

func TestComputeOpenIntervalIsIncomplete(t *testing.T) {
	day := models.NewDate(2024, time.March, 4)
	events := []models.Event{ev(t, models.Arrival, "2024-03-04 08:00:00")}

	sum := Compute(day, events, 8, nil)

	if sum.Worked != 0 || sum.Status != StatusIncomplete {
		t.Fatalf("got %v %s, an unclosed interval counts nothing", sum.Worked, sum.Status)
	}
}

func TestComputeFlexibleSchedule(t *testing.T) {
	day := models.NewDate(2024, time.March, 4)
	events := []models.Event{
		ev(t, models.Arrival, "2024-03-04 10:00:00"),
		ev(t, models.Departure, "2024-03-04 13:00:00"),
	}

	sum := Compute(day, events, models.FlexibleHours, nil)

	if sum.Status != StatusFlexible || sum.Delta != 0 {
		t.Fatalf("got %s delta %v, flexible workers have no target", sum.Status, sum.Delta)
	}
	if sum.Worked != 3 {
		t.Fatalf("worked = %v, want 3", sum.Worked)
	}
}

func TestComputeSpecialDayOverridesEvents(t *testing.T) {
	day := models.NewDate(2024, time.March, 4)
	events := []models.Event{
		ev(t, models.Arrival, "2024-03-04 08:00:00"),
		ev(t, models.Departure, "2024-03-04 16:00:00"),
	}
	override := models.Vacation

	sum := Compute(day, events, 8, &override)

	if sum.Worked != 0 || sum.Status != StatusVacation {
		t.Fatalf("got %v %s, the override must win over the events", sum.Worked, sum.Status)
	}
	if sum.FirstArrival.IsZero() {
		t.Fatal("first arrival should stay visible even on an overridden day")
	}
}

func TestComputeRangeIncludesEventlessSpecialDays(t *testing.T) {
	events := []models.Event{
		ev(t, models.Arrival, "2024-03-04 08:00:00"),
		ev(t, models.Departure, "2024-03-04 16:00:00"),
	}
	specials := map[models.Date]models.SpecialDayType{
		models.NewDate(2024, time.March, 5): models.SickLeave,
	}

	days := ComputeRange(events, 8, specials)

	if len(days) != 2 {
		t.Fatalf("got %d summaries, want 2", len(days))
	}
	if days[0].Date.After(days[1].Date.Time) {
		t.Fatal("summaries not in chronological order")
	}
	if days[1].Status != StatusSickLeave {
		t.Fatalf("eventless special day status = %s, want %s", days[1].Status, StatusSickLeave)
	}
}

func TestTotalSumsBeforeRounding(t *testing.T) {
	// three 20-minute shortfalls: rounding each day first would give 0.99
	var summaries []Summary
	for d := 4; d <= 6; d++ {
		date := models.NewDate(2024, time.March, d)
		events := []models.Event{
			{CardID: testCard, Timestamp: time.Date(2024, time.March, d, 8, 0, 0, 0, time.UTC), Kind: models.Arrival},
			{CardID: testCard, Timestamp: time.Date(2024, time.March, d, 15, 40, 0, 0, time.UTC), Kind: models.Departure},
		}
		summaries = append(summaries, Compute(date, events, 8, nil))
	}

	totals := Total(summaries)

	if totals.Days != 3 {
		t.Fatalf("days = %d, want 3", totals.Days)
	}
	if !totals.Shortfall.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("shortfall = %s, want 1", totals.Shortfall)
	}
	if !totals.Worked.Equal(decimal.RequireFromString("23")) {
		t.Fatalf("worked = %s, want 23", totals.Worked)
	}
}
