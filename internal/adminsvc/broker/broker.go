package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/adminsvc/dataset"
	syncer "github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/adminsvc/sync"
	"github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/comm"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

const subjectDataset = "timeclock.dataset"

// Broker relays dataset-change notices between admin instances over
// NATS. Without it instances still converge through polling; the broker
// just collapses the thirty-second window to near-instant.
type Broker struct {
	Conn       *nats.Conn
	Sync       *syncer.Synchronizer
	Data       *dataset.Dataset
	InstanceId string

	sub *nats.Subscription
}

func NewBroker(nc *nats.Conn, s *syncer.Synchronizer, data *dataset.Dataset, instanceId string) *Broker {
	return &Broker{Conn: nc, Sync: s, Data: data, InstanceId: instanceId}
}

// Subscribe starts listening for notices from other instances.
func (b *Broker) Subscribe() error {
	sub, err := b.Conn.Subscribe(subjectDataset, b.handleMessage)
	if err != nil {
		return err
	}
	b.sub = sub
	return nil
}

func (b *Broker) Close() {
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
	}
}

// handles notices coming from other admin instances
func (b *Broker) handleMessage(msgNat *nats.Msg) {
	msg := &comm.Message{}
	err := json.Unmarshal(msgNat.Data, &msg)
	if err != nil {
		log.Errorf("Error nats message %s", err)
		return
	}

	// our own publish echoes back; nothing to do
	if msg.InstanceId == b.InstanceId {
		return
	}

	switch msg.Type {
	case comm.TypeDatasetUpdated:
		notice := comm.DatasetNotice{}
		if err := json.Unmarshal(msg.Data, &notice); err != nil {
			log.Errorf("Error decoding dataset notice: %s", err)
			return
		}
		if notice.Version <= b.Data.Version() {
			return
		}
		log.Infof("instance %s published version %d, polling now", msg.InstanceId, notice.Version)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		b.Sync.Poll(ctx)
	}
}

// PublishNotice tells the other instances a new version is live.
func (b *Broker) PublishNotice(version int64) {
	msg, err := comm.Envelope(comm.TypeDatasetUpdated, b.InstanceId, comm.DatasetNotice{
		Version:   version,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		log.Errorf("Error building dataset notice: %s", err)
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Error marshaling dataset notice: %s", err)
		return
	}
	if err := b.Conn.Publish(subjectDataset, data); err != nil {
		log.Errorf("Error publishing dataset notice: %s", err)
	}
}
