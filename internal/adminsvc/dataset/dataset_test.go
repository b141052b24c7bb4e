package dataset

import (
	"errors"
	"testing"
	"time"

	"github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/adminsvc/models"
)

const (
	cardA = "04a3f2b19c77de"
	cardB = "B91C44870A2F13" // uppercase on purpose
)

func TestNormalizeCardID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"04a3f2b19c77de", "04a3f2b19c77de", false},
		{" 04A3F2B19C77DE ", "04a3f2b19c77de", false},
		{"04a3f2b19c77", "", true},     // too short
		{"04a3f2b19c77dez", "", true},  // too long
		{"04a3f2b19c77dg", "", true},   // non-hex
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeCardID(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizeCardID(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeCardID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAddEmployeeValidation(t *testing.T) {
	d := New()
	if _, err := d.AddEmployee("Ana", cardA, 8, nil); err != nil {
		t.Fatalf("valid employee rejected: %v", err)
	}
	if _, err := d.AddEmployee("Bor", cardA, 8, nil); !errors.Is(err, ErrDuplicateCardID) {
		t.Fatalf("duplicate card err = %v, want ErrDuplicateCardID", err)
	}
	if _, err := d.AddEmployee("Bor", cardB, 0, nil); !errors.Is(err, ErrInvalidDailyHours) {
		t.Fatalf("zero hours err = %v, want ErrInvalidDailyHours", err)
	}
	if _, err := d.AddEmployee("Bor", cardB, models.FlexibleHours, nil); err != nil {
		t.Fatalf("flexible sentinel rejected: %v", err)
	}
}

func TestRemoveEmployeeDropsSpecialDays(t *testing.T) {
	d := New()
	emp, _ := d.AddEmployee("Ana", cardA, 8, nil)
	if err := d.SetSpecialDays(cardA, []models.Date{models.NewDate(2024, time.March, 4)}, models.Vacation); err != nil {
		t.Fatalf("set special days: %v", err)
	}

	if err := d.RemoveEmployee(emp.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(d.SpecialDays()) != 0 {
		t.Fatal("special days must not outlive their employee")
	}
}

func TestRemoveGroupClearsReferences(t *testing.T) {
	d := New()
	g, _ := d.AddGroup("Proizvodnja")
	emp, err := d.AddEmployee("Ana", cardA, 8, &g.ID)
	if err != nil {
		t.Fatalf("add employee: %v", err)
	}

	if err := d.RemoveGroup(g.ID); err != nil {
		t.Fatalf("remove group: %v", err)
	}

	got, _ := d.EmployeeByID(emp.ID)
	if got.GroupID != nil {
		t.Fatal("employee should stay, with the group reference cleared")
	}
}

func TestDuplicateGroupNameRejected(t *testing.T) {
	d := New()
	d.AddGroup("Proizvodnja")
	if _, err := d.AddGroup("proizvodnja"); !errors.Is(err, ErrDuplicateGroupName) {
		t.Fatalf("err = %v, want ErrDuplicateGroupName", err)
	}
}

func TestSetSpecialDaysReplacesExisting(t *testing.T) {
	d := New()
	d.AddEmployee("Ana", cardA, 8, nil)
	day := models.NewDate(2024, time.March, 4)

	d.SetSpecialDays(cardA, []models.Date{day}, models.Vacation)
	d.SetSpecialDays(cardA, []models.Date{day}, models.SickLeave)

	days := d.SpecialDays()
	if len(days) != 1 {
		t.Fatalf("got %d entries, a re-marked date must replace not duplicate", len(days))
	}
	if days[0].Type != models.SickLeave {
		t.Fatalf("type = %s, want the later marking", days[0].Type)
	}
}

func TestChangeCardID(t *testing.T) {
	d := New()
	emp, _ := d.AddEmployee("Ana", cardA, 8, nil)
	other, _ := d.AddEmployee("Bor", cardB, 8, nil)
	day := models.NewDate(2024, time.March, 4)
	d.SetSpecialDays(cardA, []models.Date{day}, models.Vacation)

	if err := d.ChangeCardID(cardA, "ffffffffffffff"); err != nil {
		t.Fatalf("change: %v", err)
	}

	got, _ := d.EmployeeByID(emp.ID)
	if got.CardID != "ffffffffffffff" {
		t.Fatalf("card = %s, want the new id", got.CardID)
	}
	if days := d.SpecialDays(); len(days) != 1 || days[0].CardID != "ffffffffffffff" {
		t.Fatalf("special days not rebound: %v", days)
	}

	if err := d.ChangeCardID("ffffffffffffff", other.CardID); !errors.Is(err, ErrDuplicateCardID) {
		t.Fatalf("err = %v, taking another employee's card must be refused", err)
	}
}

func TestMutatorsNeverTouchVersion(t *testing.T) {
	d := New()
	d.SetVersion(7, time.Now())

	emp, _ := d.AddEmployee("Ana", cardA, 8, nil)
	g, _ := d.AddGroup("Proizvodnja")
	d.SetGroup(emp.ID, &g.ID)
	d.SetDailyHours(emp.ID, 6)
	d.RemoveGroup(g.ID)
	d.RemoveEmployee(emp.ID)

	if d.Version() != 7 {
		t.Fatalf("version = %d, only synchronization may move it", d.Version())
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	d := New()
	g, _ := d.AddGroup("Proizvodnja")
	d.AddEmployee("Ana", cardA, 8, &g.ID)
	d.SetSpecialDays(cardA, []models.Date{models.NewDate(2024, time.March, 4)}, models.SickLeave)
	d.SetVersion(3, time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC))

	data, err := Encode(d.Snapshot())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	snap, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	other := New()
	other.Replace(snap)

	if other.Version() != 3 {
		t.Fatalf("version = %d, want 3", other.Version())
	}
	if len(other.Employees()) != 1 || len(other.Groups()) != 1 || len(other.SpecialDays()) != 1 {
		t.Fatal("replaced dataset lost entries in the round trip")
	}
	emp := other.Employees()[0]
	if emp.CardID != cardA || emp.GroupID == nil || *emp.GroupID != g.ID {
		t.Fatalf("employee mangled in round trip: %+v", emp)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	d := New()
	d.AddEmployee("Ana", cardA, 8, nil)
	snap := d.Snapshot()
	snap.Employees[0].Name = "mutated"

	if d.Employees()[0].Name != "Ana" {
		t.Fatal("snapshot must not alias the live dataset")
	}
}
