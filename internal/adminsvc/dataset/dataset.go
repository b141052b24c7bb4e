package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/adminsvc/models"
	"github.com/google/uuid"
)

// Validation failures are rejected before anything touches the share.
var (
	ErrInvalidCardID      = errors.New("card id must be a 14-digit hexadecimal number")
	ErrDuplicateCardID    = errors.New("card id is already registered")
	ErrDuplicateGroupName = errors.New("group name already exists")
	ErrInvalidDailyHours  = errors.New("daily hours must be positive, or -1 for a flexible schedule")
	ErrEmployeeNotFound   = errors.New("employee not found")
	ErrGroupNotFound      = errors.New("group not found")
)

// NormalizeCardID lowercases and validates a card id.
func NormalizeCardID(raw string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(raw))
	if len(id) != 14 {
		return "", ErrInvalidCardID
	}
	for _, c := range id {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", ErrInvalidCardID
		}
	}
	return id, nil
}

// Dataset is the in-memory administrative aggregate shared between
// instances. Mutators validate and apply, but never touch the version:
// the synchronizer owns version bookkeeping at publish time.
type Dataset struct {
	mu          sync.RWMutex
	employees   []models.Employee
	groups      []models.Group
	specialDays []models.SpecialDay
	version     int64
	lastUpdated time.Time
}

func New() *Dataset {
	return &Dataset{}
}

func (d *Dataset) AddEmployee(name, cardID string, dailyHours float64, groupID *uuid.UUID) (models.Employee, error) {
	card, err := NormalizeCardID(cardID)
	if err != nil {
		return models.Employee{}, err
	}
	if dailyHours <= 0 && dailyHours != models.FlexibleHours {
		return models.Employee{}, ErrInvalidDailyHours
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.employees {
		if e.CardID == card {
			return models.Employee{}, ErrDuplicateCardID
		}
	}
	if groupID != nil && d.findGroup(*groupID) < 0 {
		return models.Employee{}, ErrGroupNotFound
	}
	emp := models.Employee{
		ID:         uuid.New(),
		Name:       name,
		CardID:     card,
		DailyHours: dailyHours,
		GroupID:    groupID,
	}
	d.employees = append(d.employees, emp)
	return emp, nil
}

func (d *Dataset) RemoveEmployee(id uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.findEmployee(id)
	if i < 0 {
		return ErrEmployeeNotFound
	}
	card := d.employees[i].CardID
	d.employees = append(d.employees[:i], d.employees[i+1:]...)

	kept := d.specialDays[:0]
	for _, sd := range d.specialDays {
		if sd.CardID != card {
			kept = append(kept, sd)
		}
	}
	d.specialDays = kept
	return nil
}

func (d *Dataset) SetDailyHours(id uuid.UUID, dailyHours float64) error {
	if dailyHours <= 0 && dailyHours != models.FlexibleHours {
		return ErrInvalidDailyHours
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.findEmployee(id)
	if i < 0 {
		return ErrEmployeeNotFound
	}
	d.employees[i].DailyHours = dailyHours
	return nil
}

func (d *Dataset) SetGroup(id uuid.UUID, groupID *uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.findEmployee(id)
	if i < 0 {
		return ErrEmployeeNotFound
	}
	if groupID != nil && d.findGroup(*groupID) < 0 {
		return ErrGroupNotFound
	}
	d.employees[i].GroupID = groupID
	return nil
}

func (d *Dataset) AddGroup(name string) (models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Group{}, fmt.Errorf("group name is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, g := range d.groups {
		if strings.EqualFold(g.Name, name) {
			return models.Group{}, ErrDuplicateGroupName
		}
	}
	group := models.Group{ID: uuid.New(), Name: name}
	d.groups = append(d.groups, group)
	return group, nil
}

// RemoveGroup drops the group and clears the advisory references to it.
// Member employees are kept.
func (d *Dataset) RemoveGroup(id uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.findGroup(id)
	if i < 0 {
		return ErrGroupNotFound
	}
	d.groups = append(d.groups[:i], d.groups[i+1:]...)
	for j := range d.employees {
		if d.employees[j].GroupID != nil && *d.employees[j].GroupID == id {
			d.employees[j].GroupID = nil
		}
	}
	return nil
}

// SetSpecialDays marks dates as sick leave or vacation for a card. A date
// that is already special gets its entry replaced, not duplicated.
func (d *Dataset) SetSpecialDays(cardID string, dates []models.Date, t models.SpecialDayType) error {
	card, err := NormalizeCardID(cardID)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, date := range dates {
		replaced := false
		for i := range d.specialDays {
			if d.specialDays[i].CardID == card && d.specialDays[i].Date.Equal(date.Time) {
				d.specialDays[i].Type = t
				replaced = true
				break
			}
		}
		if !replaced {
			d.specialDays = append(d.specialDays, models.SpecialDay{CardID: card, Date: date, Type: t})
		}
	}
	return nil
}

func (d *Dataset) ClearSpecialDays(cardID string, dates []models.Date) error {
	card, err := NormalizeCardID(cardID)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.specialDays[:0]
	for _, sd := range d.specialDays {
		drop := false
		if sd.CardID == card {
			for _, date := range dates {
				if sd.Date.Equal(date.Time) {
					drop = true
					break
				}
			}
		}
		if !drop {
			kept = append(kept, sd)
		}
	}
	d.specialDays = kept
	return nil
}

// ChangeCardID rebinds an employee and their special days to a new card.
func (d *Dataset) ChangeCardID(oldID, newID string) error {
	oldCard, err := NormalizeCardID(oldID)
	if err != nil {
		return err
	}
	newCard, err := NormalizeCardID(newID)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	target := -1
	for i, e := range d.employees {
		if e.CardID == newCard {
			return ErrDuplicateCardID
		}
		if e.CardID == oldCard {
			target = i
		}
	}
	if target < 0 {
		return ErrEmployeeNotFound
	}
	d.employees[target].CardID = newCard
	for i := range d.specialDays {
		if d.specialDays[i].CardID == oldCard {
			d.specialDays[i].CardID = newCard
		}
	}
	return nil
}

func (d *Dataset) Employees() []models.Employee {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.Employee, len(d.employees))
	copy(out, d.employees)
	return out
}

func (d *Dataset) Groups() []models.Group {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.Group, len(d.groups))
	copy(out, d.groups)
	return out
}

func (d *Dataset) SpecialDays() []models.SpecialDay {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.SpecialDay, len(d.specialDays))
	copy(out, d.specialDays)
	return out
}

func (d *Dataset) EmployeeByID(id uuid.UUID) (models.Employee, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	i := d.findEmployee(id)
	if i < 0 {
		return models.Employee{}, false
	}
	return d.employees[i], true
}

func (d *Dataset) EmployeeByCard(cardID string) (models.Employee, bool) {
	card, err := NormalizeCardID(cardID)
	if err != nil {
		return models.Employee{}, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, e := range d.employees {
		if e.CardID == card {
			return e, true
		}
	}
	return models.Employee{}, false
}

func (d *Dataset) GroupMembers(groupID uuid.UUID) []models.Employee {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []models.Employee
	for _, e := range d.employees {
		if e.GroupID != nil && *e.GroupID == groupID {
			out = append(out, e)
		}
	}
	return out
}

// SpecialsFor collects the special-day overrides for one card in a range.
func (d *Dataset) SpecialsFor(cardID string, from, to models.Date) map[models.Date]models.SpecialDayType {
	card, err := NormalizeCardID(cardID)
	if err != nil {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[models.Date]models.SpecialDayType)
	for _, sd := range d.specialDays {
		if sd.CardID != card {
			continue
		}
		if sd.Date.Before(from.Time) || sd.Date.After(to.Time) {
			continue
		}
		out[sd.Date] = sd.Type
	}
	return out
}

func (d *Dataset) Version() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// Snapshot deep-copies the aggregate for serialization.
func (d *Dataset) Snapshot() *models.Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	snap := &models.Snapshot{
		Employees:   make([]models.Employee, len(d.employees)),
		Groups:      make([]models.Group, len(d.groups)),
		SpecialDays: make([]models.SpecialDay, len(d.specialDays)),
		Version:     d.version,
		LastUpdated: d.lastUpdated,
	}
	copy(snap.Employees, d.employees)
	copy(snap.Groups, d.groups)
	copy(snap.SpecialDays, d.specialDays)
	return snap
}

// Replace swallows a fetched snapshot wholesale. No field-level merging:
// the remote copy wins in its entirety.
func (d *Dataset) Replace(snap *models.Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.employees = append([]models.Employee(nil), snap.Employees...)
	d.groups = append([]models.Group(nil), snap.Groups...)
	d.specialDays = append([]models.SpecialDay(nil), snap.SpecialDays...)
	d.version = snap.Version
	d.lastUpdated = snap.LastUpdated
}

// SetVersion records version bookkeeping after a successful publish.
func (d *Dataset) SetVersion(v int64, at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.version = v
	d.lastUpdated = at
}

// Encode and Decode convert snapshots to and from the wire document
// written to the share.
func Encode(snap *models.Snapshot) ([]byte, error) {
	return json.MarshalIndent(snap, "", "  ")
}

func Decode(data []byte) (*models.Snapshot, error) {
	snap := &models.Snapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

func (d *Dataset) findEmployee(id uuid.UUID) int {
	for i, e := range d.employees {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (d *Dataset) findGroup(id uuid.UUID) int {
	for i, g := range d.groups {
		if g.ID == id {
			return i
		}
	}
	return -1
}
