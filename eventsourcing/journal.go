package eventsourcing

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/segmentio/encoding/json"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/shortlink-org/bank-saga/config"
	"github.com/shortlink-org/bank-saga/contract"
	"github.com/shortlink-org/bank-saga/cqrs/handlers"
	cqrsmessage "github.com/shortlink-org/bank-saga/cqrs/message"
	"github.com/shortlink-org/bank-saga/cqrs/router"
	"github.com/shortlink-org/bank-saga/db"
	"github.com/shortlink-org/bank-saga/logger"
)

const keySize = 8

var (
	errMalformedKey = errors.New("eventsourcing: malformed journal key")
	errNoType       = errors.New("eventsourcing: event without routing key")
)

// Entry is one journaled event.
type Entry struct {
	OccurredAt    time.Time           `json:"occurredAt"`
	Payload       cqrsmessage.Payload `json:"payload"`
	Type          string              `json:"type"`
	CorrelationID string              `json:"correlationId"`
	Sequence      uint64              `json:"sequence"`
}

// Envelope turns the entry back into the event it was recorded from.
func (e Entry) Envelope() cqrsmessage.Envelope {
	env := cqrsmessage.NewEvent(e.Type, e.CorrelationID, e.Payload)
	env.OccurredAt = e.OccurredAt

	return env
}

// Journal is an append-only log of events keyed by a big-endian sequence.
type Journal struct {
	mu   sync.Mutex
	seq  uint64
	sync bool

	// skip holds the routing keys another consumer appends itself.
	skip map[string]bool

	store db.DB
	conn  *leveldb.DB
	log   logger.Logger
	cfg   *config.Config
}

// Append records env and returns its sequence number.
func (j *Journal) Append(ctx context.Context, env cqrsmessage.Envelope) (uint64, error) {
	if env.Type == "" {
		return 0, errNoType
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	entry := Entry{
		OccurredAt:    env.OccurredAt,
		Payload:       env.Payload,
		Type:          env.Type,
		CorrelationID: env.CorrelationID,
		Sequence:      j.seq + 1,
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return 0, fmt.Errorf("encode journal entry: %w", err)
	}

	if err := j.conn.Put(key(entry.Sequence), raw, &opt.WriteOptions{Sync: j.sync}); err != nil {
		return 0, fmt.Errorf("append journal entry %d: %w", entry.Sequence, err)
	}

	j.seq = entry.Sequence

	return entry.Sequence, nil
}

// Replay calls fn for every entry with a sequence of at least from, in order.
// It stops at the first error fn returns.
func (j *Journal) Replay(ctx context.Context, from uint64, fn func(ctx context.Context, entry Entry) error) error {
	iter := j.conn.NewIterator(&util.Range{Start: key(from)}, nil)
	defer iter.Release()

	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}

		var entry Entry
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			return fmt.Errorf("decode journal entry %x: %w", iter.Key(), err)
		}

		if err := fn(ctx, entry); err != nil {
			return err
		}
	}

	return iter.Error()
}

// Sequence returns the sequence of the last appended entry, 0 when empty.
func (j *Journal) Sequence() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.seq
}

// Handle journals an event delivered by the router.
func (j *Journal) Handle(ctx context.Context, env cqrsmessage.Envelope) error {
	_, err := j.Append(ctx, env)

	return err
}

// Skip leaves keys to a consumer that appends them before acting on them.
// It must be called before Register.
func (j *Journal) Skip(keys ...string) {
	if j.skip == nil {
		j.skip = make(map[string]bool, len(keys))
	}

	for _, k := range keys {
		j.skip[k] = true
	}
}

// Register subscribes the journal to every success and failure event it
// does not skip.
func (j *Journal) Register(r *message.Router, source router.SubscriberSource, namer *cqrsmessage.Namer, marshaler cqrsmessage.Marshaler) error {
	keys := j.keys()

	registrations := make([]router.HandlerRegistration, 0, len(keys))
	for _, routingKey := range keys {
		registrations = append(registrations, router.HandlerRegistration{
			RoutingKey: routingKey,
			Handler:    handlers.NewEnvelopeHandler(j, marshaler),
		})
	}

	return router.Register(r, source, router.RouterConfig{
		Group:    Group,
		Namer:    namer,
		Handlers: registrations,
	})
}

// keys returns the routing keys Register subscribes to.
func (j *Journal) keys() []string {
	return slices.DeleteFunc(contract.EventKeys(), func(k string) bool { return j.skip[k] })
}

func (j *Journal) Close() error {
	return j.store.Close()
}

func key(seq uint64) []byte {
	k := make([]byte, keySize)
	binary.BigEndian.PutUint64(k, seq)

	return k
}

func lastSequence(conn *leveldb.DB) (uint64, error) {
	iter := conn.NewIterator(nil, nil)
	defer iter.Release()

	if !iter.Last() {
		return 0, iter.Error()
	}

	if len(iter.Key()) != keySize {
		return 0, fmt.Errorf("%w: %x", errMalformedKey, iter.Key())
	}

	return binary.BigEndian.Uint64(iter.Key()), nil
}
