package models

import "github.com/google/uuid"

// FlexibleHours is the daily-hours sentinel for workers without a fixed
// schedule; overtime and shortfall are not computed for them.
const FlexibleHours float64 = -1

type Employee struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	CardID     string     `json:"card_id"`
	DailyHours float64    `json:"daily_hours"`
	GroupID    *uuid.UUID `json:"group_id"`
}
