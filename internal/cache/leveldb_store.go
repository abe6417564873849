package cache

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/zap"

	appErrors "nimbus-gateway/pkg/errors"
)

// LevelDBStore is a durable Store implementation on top of a single
// LevelDB database shared by all containers.
//
// Layout:
//
//	m!<container>            -> marker, presence means the container exists
//	k!<container>!<fp>       -> JSON record {seq, entry}
//	o!<container>!<seq:%016x> -> fingerprint
//	!seq                      -> global insertion counter
//
// The fixed-width hex sequence makes lexicographic iteration over the
// o! prefix yield fingerprints in insertion order. Every mutation goes
// through a single write batch, which is what gives Put its per-entry
// atomicity under concurrent readers.
type LevelDBStore struct {
	mu     sync.Mutex
	db     *leveldb.DB
	seq    uint64
	logger *zap.Logger
}

type levelRecord struct {
	Seq   uint64 `json:"seq"`
	Entry *Entry `json:"entry"`
}

var seqKey = []byte("!seq")

// NewLevelDBStore opens (or creates) the database at path.
func NewLevelDBStore(path string, logger *zap.Logger) (*LevelDBStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, appErrors.NewInternal("open leveldb store", err)
	}

	s := &LevelDBStore{db: db, logger: logger}
	if raw, err := db.Get(seqKey, nil); err == nil && len(raw) == 8 {
		s.seq = binary.BigEndian.Uint64(raw)
	}
	return s, nil
}

func (s *LevelDBStore) Open(ctx context.Context, name string) (Container, error) {
	return &levelContainer{store: s, name: name}, nil
}

func (s *LevelDBStore) ListContainers(ctx context.Context) ([]string, error) {
	prefix := []byte("m!")
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	var names []string
	for iter.Next() {
		names = append(names, string(iter.Key()[len(prefix):]))
	}
	if err := iter.Error(); err != nil {
		return nil, appErrors.NewStoreRead("list containers", err)
	}
	return names, nil
}

func (s *LevelDBStore) DeleteContainer(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := new(leveldb.Batch)
	for _, prefix := range []string{recordPrefix(name), orderPrefix(name)} {
		iter := s.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
		for iter.Next() {
			key := make([]byte, len(iter.Key()))
			copy(key, iter.Key())
			batch.Delete(key)
		}
		iter.Release()
		if err := iter.Error(); err != nil {
			return appErrors.NewStoreRead("enumerate container for deletion", err)
		}
	}
	batch.Delete(markerKey(name))

	if err := s.db.Write(batch, nil); err != nil {
		return appErrors.NewStoreWrite(fmt.Sprintf("delete container %s", name), err)
	}
	s.logger.Debug("deleted container", zap.String("container", name))
	return nil
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}

func markerKey(name string) []byte    { return []byte("m!" + name) }
func recordPrefix(name string) string { return "k!" + name + "!" }
func orderPrefix(name string) string  { return "o!" + name + "!" }

func orderKey(name string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%016x", orderPrefix(name), seq))
}

type levelContainer struct {
	store *LevelDBStore
	name  string
}

func (c *levelContainer) Name() string { return c.name }

func (c *levelContainer) Get(ctx context.Context, fingerprint string) (*Entry, bool, error) {
	raw, err := c.store.db.Get([]byte(recordPrefix(c.name)+fingerprint), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, appErrors.NewStoreRead("get entry", err)
	}

	var rec levelRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		// A corrupt record degrades to a miss per the propagation policy.
		return nil, false, appErrors.NewStoreRead("decode entry", err)
	}
	return rec.Entry, true, nil
}

func (c *levelContainer) Put(ctx context.Context, fingerprint string, entry *Entry) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	batch := new(leveldb.Batch)
	recordKey := []byte(recordPrefix(c.name) + fingerprint)

	// An overwrite re-inserts the key at the back of the order.
	if raw, err := c.store.db.Get(recordKey, nil); err == nil {
		var old levelRecord
		if err := json.Unmarshal(raw, &old); err == nil {
			batch.Delete(orderKey(c.name, old.Seq))
		}
	}

	c.store.seq++
	rec := levelRecord{Seq: c.store.seq, Entry: entry}
	encoded, err := json.Marshal(rec)
	if err != nil {
		return appErrors.NewStoreWrite("encode entry", err)
	}

	var seqRaw [8]byte
	binary.BigEndian.PutUint64(seqRaw[:], c.store.seq)

	batch.Put(recordKey, encoded)
	batch.Put(orderKey(c.name, rec.Seq), []byte(fingerprint))
	batch.Put(markerKey(c.name), nil)
	batch.Put(seqKey, seqRaw[:])

	if err := c.store.db.Write(batch, nil); err != nil {
		return appErrors.NewStoreWrite("put entry", err)
	}
	return nil
}

func (c *levelContainer) Delete(ctx context.Context, fingerprint string) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	recordKey := []byte(recordPrefix(c.name) + fingerprint)
	raw, err := c.store.db.Get(recordKey, nil)
	if err == leveldb.ErrNotFound {
		return nil
	}
	if err != nil {
		return appErrors.NewStoreRead("lookup entry for deletion", err)
	}

	batch := new(leveldb.Batch)
	batch.Delete(recordKey)
	var rec levelRecord
	if err := json.Unmarshal(raw, &rec); err == nil {
		batch.Delete(orderKey(c.name, rec.Seq))
	}
	if err := c.store.db.Write(batch, nil); err != nil {
		return appErrors.NewStoreWrite("delete entry", err)
	}
	return nil
}

func (c *levelContainer) ListKeys(ctx context.Context) ([]string, error) {
	iter := c.store.db.NewIterator(util.BytesPrefix([]byte(orderPrefix(c.name))), nil)
	defer iter.Release()

	var keys []string
	for iter.Next() {
		keys = append(keys, string(iter.Value()))
	}
	if err := iter.Error(); err != nil {
		return nil, appErrors.NewStoreRead("list keys", err)
	}
	return keys, nil
}
