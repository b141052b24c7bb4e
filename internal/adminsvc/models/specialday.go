package models

// SpecialDayType marks an administrative non-working day.
type SpecialDayType string

const (
	SickLeave SpecialDayType = "sick_leave"
	Vacation  SpecialDayType = "vacation"
)

// SpecialDay overrides whatever the clock events say for one card and one
// date. Unique per (CardID, Date); a new entry replaces the old one.
type SpecialDay struct {
	CardID string         `json:"card_id"`
	Date   Date           `json:"date"`
	Type   SpecialDayType `json:"type"`
}
