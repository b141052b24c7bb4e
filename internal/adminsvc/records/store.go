package records

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/adminsvc/models"
	"github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/smb"
	log "github.com/sirupsen/logrus"
)

// PermissionError means every remote write strategy was rejected. The data
// is preserved in a local backup file; operators must be told where.
type PermissionError struct {
	Backup string
	Err    error
}

func (e *PermissionError) Error() string {
	if e.Backup == "" {
		return fmt.Sprintf("share refused all write methods and the local backup failed too: %v", e.Err)
	}
	return fmt.Sprintf("share refused all write methods, data preserved locally at %s: %v", e.Backup, e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// Store reads and rewrites the per-day attendance files on the share.
// Reads degrade to empty days on any failure; writes go through an ordered
// list of strategies and fall back to a local backup as the last resort.
type Store struct {
	share     smb.Share
	backupDir string
}

func NewStore(share smb.Share, backupDir string) *Store {
	return &Store{share: share, backupDir: backupDir}
}

// ReadDay fetches one day file. A missing file or an unreachable share
// yields zero events, so calculations degrade instead of failing.
func (s *Store) ReadDay(ctx context.Context, date models.Date) []models.Event {
	data, err := s.share.Retrieve(ctx, FileName(date))
	if err != nil {
		if !smb.IsNotExist(err) {
			log.Warnf("read %s: %s, treating day as empty", FileName(date), err)
		}
		return nil
	}
	return decodeDayFile(date, data)
}

// ReadRange fetches every day file in the inclusive range, chronologically.
func (s *Store) ReadRange(ctx context.Context, from, to models.Date) []models.Event {
	var events []models.Event
	for d := from; !d.After(to.Time); d = d.Next() {
		events = append(events, s.ReadDay(ctx, d)...)
	}
	return events
}

// Append adds one event to its day file, rewriting the whole file.
func (s *Store) Append(ctx context.Context, e models.Event) error {
	date := models.DateOf(e.Timestamp)
	events := s.ReadDay(ctx, date)
	events = append(events, e)
	return s.rewriteDay(ctx, date, events)
}

// DeleteEvent removes every row matching the identity triple of e from the
// given day. A triple that is not present is a no-op. Matching happens on
// the combined datetime, which covers files written in either timestamp
// convention.
func (s *Store) DeleteEvent(ctx context.Context, date models.Date, e models.Event) error {
	events := s.ReadDay(ctx, date)
	kept := events[:0]
	for _, ev := range events {
		if !ev.Same(e) {
			kept = append(kept, ev)
		}
	}
	if len(kept) == len(events) {
		return nil
	}
	return s.rewriteDay(ctx, date, kept)
}

// DeleteAllForCard strips one card's events from every day in the range.
// A failure on one day does not stop the others; the count of removed
// events is returned alongside any joined write errors.
func (s *Store) DeleteAllForCard(ctx context.Context, cardID string, from, to models.Date) (int, error) {
	cardID = strings.ToLower(cardID)
	removed := 0
	var errs []error
	for d := from; !d.After(to.Time); d = d.Next() {
		events := s.ReadDay(ctx, d)
		if len(events) == 0 {
			continue
		}
		kept := events[:0]
		for _, ev := range events {
			if ev.CardID != cardID {
				kept = append(kept, ev)
			}
		}
		dropped := len(events) - len(kept)
		if dropped == 0 {
			continue
		}
		if err := s.rewriteDay(ctx, d, kept); err != nil {
			log.Errorf("purge %s for card %s: %s", FileName(d), cardID, err)
			errs = append(errs, err)
			continue
		}
		removed += dropped
	}
	return removed, errors.Join(errs...)
}

// ReplaceCardID rewrites every day file on the share that mentions the old
// card id, best effort file by file. Returns how many files were updated.
func (s *Store) ReplaceCardID(ctx context.Context, oldID, newID string) (int, error) {
	names, err := s.share.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list share: %w", err)
	}
	updated := 0
	for _, name := range names {
		if !isDayFile(name) {
			continue
		}
		data, err := s.share.Retrieve(ctx, name)
		if err != nil {
			log.Warnf("card id change: read %s: %s, skipping", name, err)
			continue
		}
		content := string(data)
		if !strings.Contains(content, oldID) {
			continue
		}
		content = strings.ReplaceAll(content, oldID, newID)
		if err := s.share.Store(ctx, name, []byte(content)); err != nil {
			log.Errorf("card id change: rewrite %s: %s, skipping", name, err)
			continue
		}
		updated++
	}
	log.Infof("card id change: %d day files updated (%s -> %s)", updated, oldID, newID)
	return updated, nil
}

// rewriteDay replaces the day file, or deletes it when no events remain:
// an empty day must be an absent file, never a zero-row file.
func (s *Store) rewriteDay(ctx context.Context, date models.Date, events []models.Event) error {
	name := FileName(date)
	if len(events) == 0 {
		if err := s.share.Delete(ctx, name); err != nil && !smb.IsNotExist(err) {
			return fmt.Errorf("delete %s: %w", name, err)
		}
		return nil
	}
	return s.writeFile(ctx, name, encodeDayFile(events))
}

// writeFile tries the write strategies in order and succeeds on the first
// one that lands. Every strategy writes a complete document; the share
// never sees a partial file.
func (s *Store) writeFile(ctx context.Context, name string, data []byte) error {
	// 1: direct overwrite
	err := s.share.Store(ctx, name, data)
	if err == nil {
		return nil
	}
	log.Warnf("write %s: direct store failed (%s), trying delete-first", name, err)

	// 2: delete the target, then create it fresh
	if delErr := s.share.Delete(ctx, name); delErr != nil && !smb.IsNotExist(delErr) {
		log.Warnf("write %s: pre-delete failed: %s", name, delErr)
	}
	err = s.share.Store(ctx, name, data)
	if err == nil {
		return nil
	}
	log.Warnf("write %s: delete-first store failed (%s), trying temp file", name, err)

	// 3: write a temp file, then copy it back over the target. If the
	// copy-back fails the temp file stays behind as the permanent copy.
	tempName := "temp_" + name
	err = s.share.Store(ctx, tempName, data)
	if err == nil {
		if delErr := s.share.Delete(ctx, name); delErr != nil && !smb.IsNotExist(delErr) {
			log.Warnf("write %s: delete before copy-back failed: %s", name, delErr)
		}
		got, readErr := s.share.Retrieve(ctx, tempName)
		if readErr == nil {
			if storeErr := s.share.Store(ctx, name, got); storeErr == nil {
				if delErr := s.share.Delete(ctx, tempName); delErr != nil {
					log.Warnf("write %s: temp cleanup failed: %s", tempName, delErr)
				}
				return nil
			}
		}
		log.Warnf("write %s: copy-back failed, keeping %s as fallback", name, tempName)
		return nil
	}
	log.Errorf("write %s: all share strategies failed: %s", name, err)

	// last resort: keep the data locally and report where it went
	backup := filepath.Join(s.backupDir, "backup_"+name)
	if backupErr := os.WriteFile(backup, data, 0644); backupErr != nil {
		log.Errorf("write %s: local backup failed too: %s", name, backupErr)
		return &PermissionError{Err: err}
	}
	return &PermissionError{Backup: backup, Err: err}
}
