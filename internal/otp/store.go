package otp

import (
	"context"
	"errors"
	"sync"

	"gomate-auth/internal/bucketing"
)

// Action tells a Store what to do with the record after an UpdateFunc ran.
type Action int

const (
	Keep Action = iota
	Save
	Delete
)

// UpdateFunc inspects and may modify the current record for a recipient. rec is
// nil when no record exists. Stores may call it more than once when they retry
// an optimistic transaction, so it must not have side effects beyond rec.
type UpdateFunc func(rec *Record) (Action, error)

// Store owns the recipient -> record mapping. Update is the only read-modify-write
// path and runs fn inside the store's critical section for that recipient.
type Store interface {
	Get(ctx context.Context, recipient string) (*Record, error)
	Put(ctx context.Context, rec Record) error
	Delete(ctx context.Context, recipient string) error
	Update(ctx context.Context, recipient string, fn UpdateFunc) error
}

var errSaveWithoutRecord = errors.New("otp: save requested without a record")

// MemoryStore keeps records in process memory, split across shards so that
// unrelated recipients do not contend on one mutex.
type MemoryStore struct {
	shards []*memoryShard
	picker *bucketing.BucketingManager
}

type memoryShard struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryStore(shards int) *MemoryStore {
	picker := bucketing.NewBucketingManager(shards)

	s := &MemoryStore{
		shards: make([]*memoryShard, picker.Buckets()),
		picker: picker,
	}
	for i := range s.shards {
		s.shards[i] = &memoryShard{records: make(map[string]Record)}
	}
	return s
}

func (s *MemoryStore) shard(recipient string) *memoryShard {
	return s.shards[s.picker.Bucket(recipient)]
}

func (s *MemoryStore) Get(_ context.Context, recipient string) (*Record, error) {
	sh := s.shard(recipient)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[recipient]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *MemoryStore) Put(_ context.Context, rec Record) error {
	sh := s.shard(rec.Recipient)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.records[rec.Recipient] = rec
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, recipient string) error {
	sh := s.shard(recipient)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	delete(sh.records, recipient)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, recipient string, fn UpdateFunc) error {
	sh := s.shard(recipient)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	var cur *Record
	if rec, ok := sh.records[recipient]; ok {
		cur = &rec
	}

	action, err := fn(cur)
	if err != nil {
		return err
	}

	switch action {
	case Save:
		if cur == nil {
			return errSaveWithoutRecord
		}
		sh.records[recipient] = *cur
	case Delete:
		delete(sh.records, recipient)
	}
	return nil
}

// Len returns the number of stored records, expired ones included.
func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.records)
		sh.mu.Unlock()
	}
	return n
}
