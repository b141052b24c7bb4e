package records

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/adminsvc/models"
)

const (
	cardA = "04a3f2b19c77de"
	cardB = "b91c44870a2f13"
)

// fakeShare is an in-memory stand-in for the remote share with failure
// injection per operation.
type fakeShare struct {
	mu    sync.Mutex
	files map[string][]byte

	storeFails  int             // fail the next n Store calls
	denyStore   map[string]bool // permanently refuse these names
	denyDelete  bool
	storeCalls  int
	deleteCalls int
}

func newFakeShare() *fakeShare {
	return &fakeShare{files: map[string][]byte{}, denyStore: map[string]bool{}}
}

func (f *fakeShare) Retrieve(_ context.Context, name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return append([]byte(nil), data...), nil
}

func (f *fakeShare) Store(_ context.Context, name string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.storeCalls++
	if f.storeFails > 0 {
		f.storeFails--
		return errors.New("access denied")
	}
	if f.denyStore[name] {
		return errors.New("access denied")
	}
	f.files[name] = append([]byte(nil), data...)
	return nil
}

func (f *fakeShare) Delete(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	if f.denyDelete {
		return errors.New("access denied")
	}
	if _, ok := f.files[name]; !ok {
		return os.ErrNotExist
	}
	delete(f.files, name)
	return nil
}

func (f *fakeShare) List(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for name := range f.files {
		names = append(names, name)
	}
	return names, nil
}

func testEvent(card string, ts string, kind models.EventKind) models.Event {
	parsed, _ := time.ParseInLocation("2006-01-02 15:04:05", ts, time.UTC)
	return models.Event{CardID: card, Timestamp: parsed, Kind: kind}
}

func TestAppendAndReadDay(t *testing.T) {
	share := newFakeShare()
	store := NewStore(share, t.TempDir())
	ctx := context.Background()
	e := testEvent(cardA, "2024-03-04 08:00:00", models.Arrival)

	if err := store.Append(ctx, e); err != nil {
		t.Fatalf("append: %v", err)
	}

	events := store.ReadDay(ctx, models.NewDate(2024, time.March, 4))
	if len(events) != 1 || !events[0].Same(e) {
		t.Fatalf("read back %v, want the appended event", events)
	}
	if _, ok := share.files["time_records_20240304.csv"]; !ok {
		t.Fatal("day file not created under the expected name")
	}
}

func TestReadDayCombinesBareTimeRows(t *testing.T) {
	share := newFakeShare()
	share.files["time_records_20240304.csv"] = []byte(
		cardA + ",08:15:00,Prihod na delo\r\n" +
			cardA + ",2024-03-04 16:00:00,Izhod iz dela\n")
	store := NewStore(share, t.TempDir())

	events := store.ReadDay(context.Background(), models.NewDate(2024, time.March, 4))

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	want := time.Date(2024, time.March, 4, 8, 15, 0, 0, time.UTC)
	if !events[0].Timestamp.Equal(want) {
		t.Fatalf("bare time parsed to %v, want %v", events[0].Timestamp, want)
	}
}

func TestReadDaySkipsMalformedRows(t *testing.T) {
	share := newFakeShare()
	share.files["time_records_20240304.csv"] = []byte(
		"garbage line\n" +
			cardA + ",not a time,Prihod na delo\n" +
			cardA + ",2024-03-04 08:00:00,Unknown label\n" +
			cardA + ",2024-03-04 08:00:00,Prihod na delo\n")
	store := NewStore(share, t.TempDir())

	events := store.ReadDay(context.Background(), models.NewDate(2024, time.March, 4))

	if len(events) != 1 {
		t.Fatalf("got %d events, only the last row is well formed", len(events))
	}
}

func TestReadDayUnavailableShareIsEmpty(t *testing.T) {
	share := newFakeShare()
	store := NewStore(share, t.TempDir())

	events := store.ReadDay(context.Background(), models.NewDate(2024, time.March, 4))
	if events != nil {
		t.Fatalf("missing file should read as an empty day, got %v", events)
	}
}

func TestDeleteLastEventRemovesFile(t *testing.T) {
	share := newFakeShare()
	store := NewStore(share, t.TempDir())
	ctx := context.Background()
	e := testEvent(cardA, "2024-03-04 08:00:00", models.Arrival)
	if err := store.Append(ctx, e); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := store.DeleteEvent(ctx, models.NewDate(2024, time.March, 4), e); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, ok := share.files["time_records_20240304.csv"]; ok {
		t.Fatal("an empty day must be an absent file, not a zero-row file")
	}
}

func TestDeleteMissingEventIsNoop(t *testing.T) {
	share := newFakeShare()
	store := NewStore(share, t.TempDir())
	ctx := context.Background()
	if err := store.Append(ctx, testEvent(cardA, "2024-03-04 08:00:00", models.Arrival)); err != nil {
		t.Fatalf("append: %v", err)
	}
	writesBefore := share.storeCalls

	ghost := testEvent(cardB, "2024-03-04 09:00:00", models.Departure)
	if err := store.DeleteEvent(ctx, models.NewDate(2024, time.March, 4), ghost); err != nil {
		t.Fatalf("delete of absent triple: %v", err)
	}

	if share.storeCalls != writesBefore {
		t.Fatal("no-op delete must not rewrite the file")
	}
}

func TestWriteFallsBackToDeleteFirst(t *testing.T) {
	share := newFakeShare()
	store := NewStore(share, t.TempDir())
	ctx := context.Background()
	share.storeFails = 1 // direct overwrite refused once

	err := store.Append(ctx, testEvent(cardA, "2024-03-04 08:00:00", models.Arrival))
	if err != nil {
		t.Fatalf("append should have recovered via delete-first: %v", err)
	}
	if _, ok := share.files["time_records_20240304.csv"]; !ok {
		t.Fatal("day file missing after recovery")
	}
}

func TestWriteKeepsTempWhenCopyBackRefused(t *testing.T) {
	share := newFakeShare()
	store := NewStore(share, t.TempDir())
	ctx := context.Background()
	share.denyStore["time_records_20240304.csv"] = true

	err := store.Append(ctx, testEvent(cardA, "2024-03-04 08:00:00", models.Arrival))
	if err != nil {
		t.Fatalf("temp file strategy counts as success: %v", err)
	}
	if _, ok := share.files["temp_time_records_20240304.csv"]; !ok {
		t.Fatal("temp file should survive as the permanent copy")
	}
}

func TestWriteFallsBackToLocalBackup(t *testing.T) {
	share := newFakeShare()
	backupDir := t.TempDir()
	store := NewStore(share, backupDir)
	ctx := context.Background()
	share.storeFails = 1000 // every strategy refused
	share.denyDelete = true

	err := store.Append(ctx, testEvent(cardA, "2024-03-04 08:00:00", models.Arrival))

	var perm *PermissionError
	if !errors.As(err, &perm) {
		t.Fatalf("got %v, want a PermissionError", err)
	}
	want := filepath.Join(backupDir, "backup_time_records_20240304.csv")
	if perm.Backup != want {
		t.Fatalf("backup path = %q, want %q", perm.Backup, want)
	}
	data, readErr := os.ReadFile(want)
	if readErr != nil {
		t.Fatalf("backup file unreadable: %v", readErr)
	}
	if !strings.Contains(string(data), cardA) {
		t.Fatal("backup file does not contain the event")
	}
}

func TestDeleteAllForCard(t *testing.T) {
	share := newFakeShare()
	store := NewStore(share, t.TempDir())
	ctx := context.Background()
	for _, e := range []models.Event{
		testEvent(cardA, "2024-03-04 08:00:00", models.Arrival),
		testEvent(cardB, "2024-03-04 09:00:00", models.Arrival),
		testEvent(cardA, "2024-03-05 08:00:00", models.Arrival),
	} {
		if err := store.Append(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	removed, err := store.DeleteAllForCard(ctx,
		cardA, models.NewDate(2024, time.March, 4), models.NewDate(2024, time.March, 5))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed %d events, want 2", removed)
	}

	left := store.ReadRange(ctx, models.NewDate(2024, time.March, 4), models.NewDate(2024, time.March, 5))
	if len(left) != 1 || left[0].CardID != cardB {
		t.Fatalf("remaining events %v, only the other card should survive", left)
	}
}

func TestReplaceCardIDTouchesOnlyMatchingDayFiles(t *testing.T) {
	share := newFakeShare()
	share.files["time_records_20240304.csv"] = []byte(cardA + ",2024-03-04 08:00:00,Prihod na delo\n")
	share.files["time_records_20240305.csv"] = []byte(cardB + ",2024-03-05 08:00:00,Prihod na delo\n")
	share.files["shared_data.json"] = []byte(`{"version":1}`)
	store := NewStore(share, t.TempDir())

	updated, err := store.ReplaceCardID(context.Background(), cardA, "ffffffffffffff")
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if updated != 1 {
		t.Fatalf("updated %d files, want 1", updated)
	}
	if !strings.Contains(string(share.files["time_records_20240304.csv"]), "ffffffffffffff") {
		t.Fatal("matching file not rewritten")
	}
	if strings.Contains(string(share.files["time_records_20240305.csv"]), "ffffffffffffff") {
		t.Fatal("non-matching file was touched")
	}
}
