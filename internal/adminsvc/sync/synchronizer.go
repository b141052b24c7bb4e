package sync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	gosync "sync"
	"sync/atomic"
	"time"

	"github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/adminsvc/dataset"
	"github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/adminsvc/models"
	"github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/smb"
	log "github.com/sirupsen/logrus"
)

const (
	snapshotFile  = "shared_data.json"
	versionMarker = "data_version.txt"
	rosterFile    = "worker_id.csv"

	publishRetries = 3
	publishPause   = time.Second
)

// ErrSyncFailed means the snapshot could not be published after all
// retries. The in-memory dataset keeps the unsynchronized changes.
var ErrSyncFailed = errors.New("dataset publish failed after retries")

// errSyncBusy marks a publish attempt that collided with an in-flight
// poll. It is retryable like any share failure.
var errSyncBusy = errors.New("a poll is applying a remote snapshot")

// synchronizer states. One poll in flight at a time; ticks that land
// while a poll or apply is running are skipped, not queued.
const (
	stateIdle int32 = iota
	statePolling
	stateApplying
)

// Mirror is the optional local database copy of the dataset. It is kept
// eventually consistent with the share and is never the source of truth.
type Mirror interface {
	ReplaceAll(ctx context.Context, snap *models.Snapshot) error
	Version(ctx context.Context) (int64, error)
}

// Notice tells listeners the dataset changed, locally or remotely.
type Notice struct {
	Version int64
	Remote  bool
}

// Fault reports a publish that gave up after all retries.
type Fault struct {
	Err error
}

// Synchronizer keeps the in-memory dataset aligned with the shared
// snapshot on the share. It polls the cheap version marker, fetches the
// full document only when the remote version is ahead, and publishes
// local changes with a bumped version.
type Synchronizer struct {
	share    smb.Share
	data     *dataset.Dataset
	mirror   Mirror // may be nil
	interval time.Duration

	state    int32
	pub      gosync.Mutex // serializes in-process publishes
	updates  chan Notice
	failures chan Fault

	stop gosync.Once
	done chan struct{}
	quit chan struct{}
}

func New(share smb.Share, data *dataset.Dataset, mirror Mirror, interval time.Duration) *Synchronizer {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Synchronizer{
		share:    share,
		data:     data,
		mirror:   mirror,
		interval: interval,
		updates:  make(chan Notice, 8),
		failures: make(chan Fault, 8),
		done:     make(chan struct{}),
		quit:     make(chan struct{}),
	}
}

// Updates delivers change notices. Listeners that fall behind lose
// notices rather than blocking the sync loop.
func (s *Synchronizer) Updates() <-chan Notice { return s.updates }

// Failures delivers publish faults for operator-facing surfaces.
func (s *Synchronizer) Failures() <-chan Fault { return s.failures }

// Bootstrap loads the current snapshot at startup. An absent snapshot
// means a fresh share: start from an empty version-zero dataset.
func (s *Synchronizer) Bootstrap(ctx context.Context) error {
	data, err := s.share.Retrieve(ctx, snapshotFile)
	if err != nil {
		if smb.IsNotExist(err) {
			log.Info("no shared snapshot on the share, starting empty at version 0")
			return nil
		}
		return fmt.Errorf("bootstrap: %w", err)
	}
	snap, err := dataset.Decode(data)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	s.apply(ctx, snap)
	log.Infof("bootstrapped dataset at version %d (%d employees, %d groups)",
		snap.Version, len(snap.Employees), len(snap.Groups))
	return nil
}

// Run polls until the context ends or Stop is called.
func (s *Synchronizer) Run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.quit:
			return
		case <-ticker.C:
			s.Poll(ctx)
		}
	}
}

// Stop ends the poll loop and waits for it to drain.
func (s *Synchronizer) Stop() {
	s.stop.Do(func() { close(s.quit) })
	<-s.done
}

// Poll checks the remote version marker and pulls the snapshot when the
// share is ahead. Reentrant calls while a poll or publish is running are
// skipped; the next tick catches up.
func (s *Synchronizer) Poll(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&s.state, stateIdle, statePolling) {
		log.Debug("poll skipped, sync already in progress")
		return
	}
	defer atomic.StoreInt32(&s.state, stateIdle)

	remote, err := s.remoteVersion(ctx)
	if err != nil {
		log.Warnf("poll: %s", err)
		return
	}
	local := s.data.Version()
	if remote <= local {
		return
	}

	log.Infof("remote dataset at version %d, local at %d, fetching snapshot", remote, local)
	data, err := s.share.Retrieve(ctx, snapshotFile)
	if err != nil {
		log.Warnf("poll: fetch snapshot: %s", err)
		return
	}
	snap, err := dataset.Decode(data)
	if err != nil {
		log.Errorf("poll: %s", err)
		return
	}

	atomic.StoreInt32(&s.state, stateApplying)
	s.apply(ctx, snap)
	s.notify(Notice{Version: snap.Version, Remote: true})
}

// apply replaces the dataset wholesale and refreshes the mirror.
func (s *Synchronizer) apply(ctx context.Context, snap *models.Snapshot) {
	s.data.Replace(snap)
	if s.mirror != nil {
		if err := s.mirror.ReplaceAll(ctx, snap); err != nil {
			log.Errorf("mirror refresh at version %d: %s", snap.Version, err)
		}
	}
}

// Publish pushes the current dataset to the share with a bumped version.
// In-process publishes are serialized; a collision with an in-flight
// poll counts as one failed attempt and is retried after the pause, the
// same as a share failure. On exhaustion the in-memory changes stay; the
// share simply lags until the next successful publish.
func (s *Synchronizer) Publish(ctx context.Context) error {
	s.pub.Lock()
	defer s.pub.Unlock()

	var lastErr error
	for attempt := 1; attempt <= publishRetries; attempt++ {
		snap, err := s.tryPublish(ctx)
		if err == nil {
			s.data.SetVersion(snap.Version, snap.LastUpdated)
			if s.mirror != nil {
				if err := s.mirror.ReplaceAll(ctx, snap); err != nil {
					log.Errorf("mirror refresh at version %d: %s", snap.Version, err)
				}
			}
			s.notify(Notice{Version: snap.Version})
			log.Infof("published dataset version %d", snap.Version)
			return nil
		}
		lastErr = err
		log.Warnf("publish attempt %d/%d failed: %s", attempt, publishRetries, lastErr)
		if attempt < publishRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(publishPause):
			}
		}
	}
	s.fault(Fault{Err: lastErr})
	return fmt.Errorf("%w: %v", ErrSyncFailed, lastErr)
}

// tryPublish makes one attempt under the state guard. The snapshot is
// taken inside the guard so a poll that landed between attempts feeds
// the next version number.
func (s *Synchronizer) tryPublish(ctx context.Context) (*models.Snapshot, error) {
	if !atomic.CompareAndSwapInt32(&s.state, stateIdle, stateApplying) {
		return nil, errSyncBusy
	}
	defer atomic.StoreInt32(&s.state, stateIdle)

	snap := s.data.Snapshot()
	snap.Version++
	snap.LastUpdated = time.Now().UTC()
	data, err := dataset.Encode(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.share.Store(ctx, snapshotFile, data); err != nil {
		return nil, err
	}
	if err := s.share.Store(ctx, versionMarker, []byte(strconv.FormatInt(snap.Version, 10))); err != nil {
		return nil, err
	}
	return snap, nil
}

// ExportRoster writes the name-to-card roster consumed by the clock-in
// terminals. Best effort alongside publish.
func (s *Synchronizer) ExportRoster(ctx context.Context) error {
	var b strings.Builder
	for _, e := range s.data.Employees() {
		b.WriteString(e.Name)
		b.WriteByte(';')
		b.WriteString(e.CardID)
		b.WriteByte('\n')
	}
	if err := s.share.Store(ctx, rosterFile, []byte(b.String())); err != nil {
		return fmt.Errorf("export roster: %w", err)
	}
	return nil
}

// remoteVersion reads the cheap version marker. An absent marker means
// nothing was ever published.
func (s *Synchronizer) remoteVersion(ctx context.Context) (int64, error) {
	data, err := s.share.Retrieve(ctx, versionMarker)
	if err != nil {
		if smb.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read version marker: %w", err)
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed version marker %q", strings.TrimSpace(string(data)))
	}
	return v, nil
}

func (s *Synchronizer) notify(n Notice) {
	select {
	case s.updates <- n:
	default:
		log.Warn("update listeners behind, dropping notice")
	}
}

func (s *Synchronizer) fault(f Fault) {
	select {
	case s.failures <- f:
	default:
	}
}
