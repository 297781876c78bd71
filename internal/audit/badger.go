package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/wirepool/wirepool-go/internal/core/domain"
	"github.com/wirepool/wirepool-go/internal/telemetry/logger"
)

// Key layout: audit:{unix_ms}:{seq}. Keys sort chronologically so a
// prefix scan replays the trail in order.
const keyPrefix = "audit:"

// DefaultRetention is how long records are kept before Badger's TTL
// expires them.
const DefaultRetention = 30 * 24 * time.Hour

// BadgerConfig configures the persistent sink.
type BadgerConfig struct {
	// Dir is the Badger data directory.
	Dir string

	// Retention is the record TTL. Zero means DefaultRetention.
	Retention time.Duration
}

// BadgerSink persists audit records in a Badger store with TTL-based
// retention. Writes happen on a background goroutine so Record never
// blocks the calling operation.
type BadgerSink struct {
	db        *badger.DB
	retention time.Duration
	log       logger.Logger

	records chan domain.AuditRecord
	done    chan struct{}
}

// NewBadgerSink opens the store and starts the writer goroutine.
func NewBadgerSink(cfg BadgerConfig, log logger.Logger) (*BadgerSink, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("audit: badger dir is required")
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}

	opts := badger.DefaultOptions(cfg.Dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("audit: open badger: %w", err)
	}

	s := &BadgerSink{
		db:        db,
		retention: cfg.Retention,
		log:       log.With("component", "audit-store"),
		records:   make(chan domain.AuditRecord, 256),
		done:      make(chan struct{}),
	}
	go s.writeLoop()
	return s, nil
}

// Record implements service.AuditSink. Never blocks: when the write
// queue is full the record is counted as lost and dropped.
func (s *BadgerSink) Record(rec domain.AuditRecord) {
	select {
	case s.records <- rec:
	default:
		s.log.Warn("audit record dropped, write queue full")
	}
}

// Close drains the queue and closes the store.
func (s *BadgerSink) Close() error {
	close(s.records)
	<-s.done
	return s.db.Close()
}

func (s *BadgerSink) writeLoop() {
	defer close(s.done)
	seq := uint64(0)
	for rec := range s.records {
		seq++
		key := fmt.Sprintf("%s%013d:%06d", keyPrefix, rec.Timestamp, seq)
		payload, err := json.Marshal(rec)
		if err != nil {
			s.log.Error("marshal audit record", "error", err)
			continue
		}
		err = s.db.Update(func(txn *badger.Txn) error {
			entry := badger.NewEntry([]byte(key), payload).WithTTL(s.retention)
			return txn.SetEntry(entry)
		})
		if err != nil {
			s.log.Error("persist audit record", "error", err)
		}
	}
}

// Replay streams the stored records in chronological order. The
// callback returns false to stop.
func (s *BadgerSink) Replay(fn func(rec domain.AuditRecord) bool) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec domain.AuditRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			if !fn(rec) {
				return nil
			}
		}
		return nil
	})
}
