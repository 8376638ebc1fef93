package kvstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

const defaultJanitorInterval = time.Minute

type itemKind int

const (
	kindString itemKind = iota
	kindList
	kindSet
	kindHash
	kindZSet
)

type memoryItem struct {
	kind     itemKind
	str      []byte
	list     [][]byte
	set      map[string]struct{}
	hash     map[string][]byte
	zset     map[string]float64
	expireAt time.Time
}

func (i *memoryItem) expired(now time.Time) bool {
	return !i.expireAt.IsZero() && !now.Before(i.expireAt)
}

func (i *memoryItem) empty() bool {
	switch i.kind {
	case kindList:
		return len(i.list) == 0
	case kindSet:
		return len(i.set) == 0
	case kindHash:
		return len(i.hash) == 0
	case kindZSet:
		return len(i.zset) == 0
	default:
		return false
	}
}

// MemoryOption customises a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithJanitorInterval controls how often expired keys are swept. A value <= 0
// disables the background sweep; expired keys are then only dropped on access.
func WithJanitorInterval(interval time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		s.janitorInterval = interval
	}
}

// MemoryStore is an in-process Store with Redis-compatible semantics. It backs
// tests and single-instance deployments that run without Redis.
type MemoryStore struct {
	mu              sync.Mutex
	items           map[string]*memoryItem
	now             func() time.Time
	janitorInterval time.Duration
	closed          bool
	stop            chan struct{}
	done            chan struct{}
}

// NewMemoryStore constructs an empty store and starts the expiry janitor.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		items:           make(map[string]*memoryItem),
		now:             time.Now,
		janitorInterval: defaultJanitorInterval,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.janitorInterval > 0 {
		s.stop = make(chan struct{})
		s.done = make(chan struct{})
		go s.janitor()
	}
	return s
}

func (s *MemoryStore) janitor() {
	defer close(s.done)
	ticker := time.NewTicker(s.janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for key, item := range s.items {
		if item.expired(now) {
			delete(s.items, key)
		}
	}
}

// Close stops the janitor. Subsequent calls return ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.stop != nil {
		close(s.stop)
		<-s.done
	}
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guard(ctx)
}

// guard must be called with mu held.
func (s *MemoryStore) guard(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// lookup returns the live item for key, evicting it if expired. mu must be held.
func (s *MemoryStore) lookup(key string) *memoryItem {
	item, ok := s.items[key]
	if !ok {
		return nil
	}
	if item.expired(s.now()) {
		delete(s.items, key)
		return nil
	}
	return item
}

// lookupKind returns the item for key if it holds the expected kind. When create
// is true a missing key is initialised. mu must be held.
func (s *MemoryStore) lookupKind(key string, kind itemKind, create bool) (*memoryItem, error) {
	item := s.lookup(key)
	if item == nil {
		if !create {
			return nil, nil
		}
		item = &memoryItem{kind: kind}
		switch kind {
		case kindSet:
			item.set = make(map[string]struct{})
		case kindHash:
			item.hash = make(map[string][]byte)
		case kindZSet:
			item.zset = make(map[string]float64)
		}
		s.items[key] = item
		return item, nil
	}
	if item.kind != kind {
		return nil, ErrWrongType
	}
	return item, nil
}

// dropIfEmpty mirrors Redis removing aggregate keys once they hold no elements.
func (s *MemoryStore) dropIfEmpty(key string, item *memoryItem) {
	if item != nil && item.empty() {
		delete(s.items, key)
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(ctx); err != nil {
		return nil, err
	}
	item, err := s.lookupKind(key, kindString, false)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNil
	}
	return cloneBytes(item.str), nil
}

func (s *MemoryStore) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(ctx); err != nil {
		return err
	}
	item := &memoryItem{kind: kindString, str: cloneBytes(value)}
	if ttl > 0 {
		item.expireAt = s.now().Add(ttl)
	}
	s.items[key] = item
	return nil
}

func (s *MemoryStore) Del(ctx context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(ctx); err != nil {
		return 0, err
	}
	var removed int64
	for _, key := range keys {
		if s.lookup(key) != nil {
			delete(s.items, key)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(ctx); err != nil {
		return false, err
	}
	return s.lookup(key) != nil, nil
}

func (s *MemoryStore) FlushAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(ctx); err != nil {
		return err
	}
	s.items = make(map[string]*memoryItem)
	return nil
}

func (s *MemoryStore) LPush(ctx context.Context, key string, values ...[]byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(ctx); err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, nil
	}
	item, err := s.lookupKind(key, kindList, true)
	if err != nil {
		return 0, err
	}
	head := make([][]byte, 0, len(values)+len(item.list))
	for i := len(values) - 1; i >= 0; i-- {
		head = append(head, cloneBytes(values[i]))
	}
	item.list = append(head, item.list...)
	return int64(len(item.list)), nil
}

func (s *MemoryStore) LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(ctx); err != nil {
		return nil, err
	}
	item, err := s.lookupKind(key, kindList, false)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return [][]byte{}, nil
	}
	from, to, ok := listBounds(int64(len(item.list)), start, stop)
	if !ok {
		return [][]byte{}, nil
	}
	out := make([][]byte, 0, to-from+1)
	for _, v := range item.list[from : to+1] {
		out = append(out, cloneBytes(v))
	}
	return out, nil
}

func (s *MemoryStore) LTrim(ctx context.Context, key string, start, stop int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(ctx); err != nil {
		return err
	}
	item, err := s.lookupKind(key, kindList, false)
	if err != nil || item == nil {
		return err
	}
	from, to, ok := listBounds(int64(len(item.list)), start, stop)
	if !ok {
		item.list = nil
	} else {
		item.list = append([][]byte(nil), item.list[from:to+1]...)
	}
	s.dropIfEmpty(key, item)
	return nil
}

func (s *MemoryStore) SAdd(ctx context.Context, key string, members ...[]byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(ctx); err != nil {
		return 0, err
	}
	if len(members) == 0 {
		return 0, nil
	}
	item, err := s.lookupKind(key, kindSet, true)
	if err != nil {
		return 0, err
	}
	var added int64
	for _, m := range members {
		if _, ok := item.set[string(m)]; ok {
			continue
		}
		item.set[string(m)] = struct{}{}
		added++
	}
	return added, nil
}

func (s *MemoryStore) SMembers(ctx context.Context, key string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(ctx); err != nil {
		return nil, err
	}
	item, err := s.lookupKind(key, kindSet, false)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return [][]byte{}, nil
	}
	members := make([]string, 0, len(item.set))
	for m := range item.set {
		members = append(members, m)
	}
	sort.Strings(members)
	out := make([][]byte, len(members))
	for i, m := range members {
		out[i] = []byte(m)
	}
	return out, nil
}

func (s *MemoryStore) HSet(ctx context.Context, key, field string, value []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(ctx); err != nil {
		return 0, err
	}
	item, err := s.lookupKind(key, kindHash, true)
	if err != nil {
		return 0, err
	}
	_, existed := item.hash[field]
	item.hash[field] = cloneBytes(value)
	if existed {
		return 0, nil
	}
	return 1, nil
}

func (s *MemoryStore) HGet(ctx context.Context, key, field string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(ctx); err != nil {
		return nil, err
	}
	item, err := s.lookupKind(key, kindHash, false)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNil
	}
	val, ok := item.hash[field]
	if !ok {
		return nil, ErrNil
	}
	return cloneBytes(val), nil
}

func (s *MemoryStore) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(ctx); err != nil {
		return nil, err
	}
	item, err := s.lookupKind(key, kindHash, false)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte)
	if item == nil {
		return out, nil
	}
	for field, val := range item.hash {
		out[field] = cloneBytes(val)
	}
	return out, nil
}

// Pipeline returns a pipeline whose commands execute under a single lock acquisition.
func (s *MemoryStore) Pipeline() Pipeline {
	return &memoryPipeline{store: s}
}

type memoryPipeline struct {
	store *MemoryStore
	ops   []func() Result
}

func (p *memoryPipeline) ZRemRangeByScore(key string, min, max float64) Pipeline {
	p.ops = append(p.ops, func() Result {
		item, err := p.store.lookupKind(key, kindZSet, false)
		if err != nil || item == nil {
			return Result{Err: err}
		}
		var removed int64
		for member, score := range item.zset {
			if score >= min && score <= max {
				delete(item.zset, member)
				removed++
			}
		}
		p.store.dropIfEmpty(key, item)
		return Result{Val: removed}
	})
	return p
}

func (p *memoryPipeline) ZAdd(key string, score float64, member string) Pipeline {
	p.ops = append(p.ops, func() Result {
		item, err := p.store.lookupKind(key, kindZSet, true)
		if err != nil {
			return Result{Err: err}
		}
		_, existed := item.zset[member]
		item.zset[member] = score
		if existed {
			return Result{Val: 0}
		}
		return Result{Val: 1}
	})
	return p
}

func (p *memoryPipeline) ZCard(key string) Pipeline {
	p.ops = append(p.ops, func() Result {
		item, err := p.store.lookupKind(key, kindZSet, false)
		if err != nil || item == nil {
			return Result{Err: err}
		}
		return Result{Val: int64(len(item.zset))}
	})
	return p
}

func (p *memoryPipeline) Expire(key string, ttl time.Duration) Pipeline {
	p.ops = append(p.ops, func() Result {
		item := p.store.lookup(key)
		if item == nil {
			return Result{Val: 0}
		}
		if ttl <= 0 {
			delete(p.store.items, key)
			return Result{Val: 1}
		}
		item.expireAt = p.store.now().Add(ttl)
		return Result{Val: 1}
	})
	return p
}

func (p *memoryPipeline) Len() int { return len(p.ops) }

func (p *memoryPipeline) Exec(ctx context.Context) ([]Result, error) {
	if len(p.ops) == 0 {
		return nil, nil
	}
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	if err := p.store.guard(ctx); err != nil {
		return nil, err
	}
	results := make([]Result, len(p.ops))
	for i, op := range p.ops {
		results[i] = op()
	}
	return results, nil
}

// listBounds resolves Redis-style inclusive indices (negative counts from the tail).
func listBounds(length, start, stop int64) (int64, int64, bool) {
	if start < 0 {
		start += length
	}
	if stop < 0 {
		stop += length
	}
	if start < 0 {
		start = 0
	}
	if stop >= length {
		stop = length - 1
	}
	if length == 0 || start > stop || start >= length {
		return 0, 0, false
	}
	return start, stop, true
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
