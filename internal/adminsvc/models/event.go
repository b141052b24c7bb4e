package models

import "time"

// EventKind is the direction of a clock event. The wire labels are the
// fixed strings the badge readers write into the day files.
type EventKind string

const (
	Arrival   EventKind = "Prihod na delo"
	Departure EventKind = "Izhod iz dela"
)

// Event is one clock-in or clock-out row from a day file. Events carry no
// surrogate key; the (CardID, Timestamp, Kind) triple is their identity.
type Event struct {
	CardID    string    `json:"card_id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      EventKind `json:"kind"`
}

// Same reports identity-triple equality. Timestamps are compared at second
// precision because day files store them as text.
func (e Event) Same(o Event) bool {
	return e.CardID == o.CardID && e.Kind == o.Kind && e.Timestamp.Unix() == o.Timestamp.Unix()
}
