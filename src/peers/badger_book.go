package peers

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

const bookPrefix = "peer_"

// ErrNotInBook is returned by BadgerBook.Get for unknown addresses.
var ErrNotInBook = errors.New("peer not in book")

// BookEntry is the persistent record of a peer address.
type BookEntry struct {
	Addr        string
	Direction   Direction
	FirstSeen   time.Time
	LastSeen    time.Time
	Connections int
}

// Marshal encodes the entry in JSON with ugorji's codec.
func (e *BookEntry) Marshal() ([]byte, error) {
	var b bytes.Buffer
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(&b, jh)
	if err := enc.Encode(e); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// Unmarshal is the inverse of Marshal.
func (e *BookEntry) Unmarshal(data []byte) error {
	jh := new(codec.JsonHandle)
	dec := codec.NewDecoder(bytes.NewReader(data), jh)
	return dec.Decode(e)
}

// BadgerBook persists every peer address the node registered, with first and
// last sighting, in a Badger database.
type BadgerBook struct {
	db     *badger.DB
	path   string
	logger *logrus.Entry
}

// OpenBadgerBook opens, or creates, the database at path.
func OpenBadgerBook(path string, logger *logrus.Entry) (*BadgerBook, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(path).
		WithSyncWrites(false).
		WithLogger(logger.WithField("ns", "badger"))

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open peer book: %w", err)
	}

	return &BadgerBook{
		db:     handle,
		path:   path,
		logger: logger,
	}, nil
}

func bookKey(addr string) []byte {
	return []byte(bookPrefix + addr)
}

// Record upserts the entry for info.Addr: the first call sets FirstSeen, every
// call bumps LastSeen and the connection count.
func (b *BadgerBook) Record(info PeerInfo) error {
	return b.db.Update(func(txn *badger.Txn) error {
		entry := &BookEntry{
			Addr:      info.Addr,
			Direction: info.Direction,
			FirstSeen: info.ConnectedAt,
		}

		item, err := txn.Get(bookKey(info.Addr))
		switch {
		case err == nil:
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := entry.Unmarshal(raw); err != nil {
				return err
			}
		case errors.Is(err, badger.ErrKeyNotFound):
		default:
			return err
		}

		entry.Direction = info.Direction
		entry.LastSeen = info.LastActivity
		entry.Connections++

		raw, err := entry.Marshal()
		if err != nil {
			return err
		}
		return txn.Set(bookKey(info.Addr), raw)
	})
}

// Get returns the entry for addr, or ErrNotInBook.
func (b *BadgerBook) Get(addr string) (*BookEntry, error) {
	var entry BookEntry
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(bookKey(addr))
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return entry.Unmarshal(raw)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotInBook
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// All returns every entry, ordered by address.
func (b *BadgerBook) All() ([]BookEntry, error) {
	var res []BookEntry
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(bookPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var entry BookEntry
			if err := entry.Unmarshal(raw); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			res = append(res, entry)
		}
		return nil
	})
	return res, err
}

// Close closes the underlying database.
func (b *BadgerBook) Close() error {
	return b.db.Close()
}
