package records

import (
	"fmt"
	"strings"
	"time"

	"github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/adminsvc/models"
	log "github.com/sirupsen/logrus"
)

const (
	filePrefix      = "time_records_"
	fileSuffix      = ".csv"
	fileDateLayout  = "20060102"
	timestampLayout = "2006-01-02 15:04:05"
	timeOnlyLayout  = "15:04:05"
)

// FileName derives the remote day-file name for a calendar day.
func FileName(date models.Date) string {
	return filePrefix + date.Format(fileDateLayout) + fileSuffix
}

func isDayFile(name string) bool {
	return strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileSuffix)
}

// ParseTimestamp parses the full-datetime convention used by manual
// correction requests.
func ParseTimestamp(raw string) (time.Time, error) {
	t, err := time.ParseInLocation(timestampLayout, strings.TrimSpace(raw), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp must look like %q", timestampLayout)
	}
	return t, nil
}

// parseTimestamp accepts both conventions found in day files: a full
// datetime, or a bare time-of-day that gets combined with the file's date.
func parseTimestamp(raw string, date models.Date) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.ParseInLocation(timestampLayout, raw, time.UTC); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(timeOnlyLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
	}
	return time.Date(date.Year(), date.Month(), date.Day(),
		t.Hour(), t.Minute(), t.Second(), 0, time.UTC), nil
}

func parseKind(raw string) (models.EventKind, error) {
	switch models.EventKind(strings.TrimSpace(raw)) {
	case models.Arrival:
		return models.Arrival, nil
	case models.Departure:
		return models.Departure, nil
	}
	return "", fmt.Errorf("unrecognized status label %q", raw)
}

// decodeDayFile parses day-file rows best effort: malformed rows are
// skipped with a warning, never fatal.
func decodeDayFile(date models.Date, data []byte) []models.Event {
	var events []models.Event
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.SplitN(line, ",", 3)
		if len(parts) != 3 {
			log.Warnf("day file %s: skipping malformed row %q", FileName(date), line)
			continue
		}
		ts, err := parseTimestamp(parts[1], date)
		if err != nil {
			log.Warnf("day file %s: %s, row skipped", FileName(date), err)
			continue
		}
		kind, err := parseKind(parts[2])
		if err != nil {
			log.Warnf("day file %s: %s, row skipped", FileName(date), err)
			continue
		}
		events = append(events, models.Event{
			CardID:    strings.ToLower(strings.TrimSpace(parts[0])),
			Timestamp: ts,
			Kind:      kind,
		})
	}
	return events
}

// encodeDayFile writes rows in the full-datetime convention. Every rewrite
// produces a complete replacement document.
func encodeDayFile(events []models.Event) []byte {
	var b strings.Builder
	for _, e := range events {
		b.WriteString(e.CardID)
		b.WriteByte(',')
		b.WriteString(e.Timestamp.Format(timestampLayout))
		b.WriteByte(',')
		b.WriteString(string(e.Kind))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}
