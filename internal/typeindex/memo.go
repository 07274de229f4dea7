package typeindex

import (
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"tsbc/internal/types"
)

type memoKey struct {
	owner string
	name  string
	arity int
}

func (k memoKey) String() string {
	return k.owner + "\x00" + k.name + "\x00" + strconv.Itoa(k.arity)
}

const samKey = "\x00sam"

type samResult struct {
	m  *types.Method
	ok bool
}

// Memo caches candidate lookups of a base index for the life of the
// process. Concurrent misses on the same key compute once; misses on
// different keys never wait on each other.
type Memo struct {
	base    Index
	entries sync.Map // memoKey -> []*types.Method or samResult
	assign  sync.Map // [2]string -> bool
	group   singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

func NewMemo(base Index) *Memo {
	return &Memo{base: base}
}

// Stats returns the hit and miss counters.
func (m *Memo) Stats() (hits, misses int64) {
	return m.hits.Load(), m.misses.Load()
}

func (m *Memo) load(key memoKey, compute func() any) any {
	if v, ok := m.entries.Load(key); ok {
		m.hits.Add(1)
		return v
	}
	v, _, _ := m.group.Do(key.String(), func() (any, error) {
		if v, ok := m.entries.Load(key); ok {
			return v, nil
		}
		m.misses.Add(1)
		v := compute()
		m.entries.Store(key, v)
		return v, nil
	})
	return v
}

func (m *Memo) Class(name string) (*ClassInfo, bool) { return m.base.Class(name) }

func (m *Memo) Members(owner types.Type, name string) []*types.Method {
	return m.Lookup(owner, name, AnyArity)
}

func (m *Memo) Constructors(owner types.Type) []*types.Method {
	return m.Lookup(owner, types.ConstructorName, AnyArity)
}

func (m *Memo) Lookup(owner types.Type, name string, arity int) []*types.Method {
	key := memoKey{owner: owner.String(), name: name, arity: arity}
	return m.load(key, func() any {
		return m.base.Lookup(owner, name, arity)
	}).([]*types.Method)
}

func (m *Memo) Field(owner types.Type, name string) (*Field, bool) {
	return m.base.Field(owner, name)
}

func (m *Memo) IsAssignable(from, to types.Type) bool {
	key := [2]string{from.String(), to.String()}
	if v, ok := m.assign.Load(key); ok {
		return v.(bool)
	}
	ok := m.base.IsAssignable(from, to)
	m.assign.Store(key, ok)
	return ok
}

func (m *Memo) SingleAbstractMethod(t types.Type) (*types.Method, bool) {
	key := memoKey{owner: t.String(), name: samKey, arity: AnyArity}
	r := m.load(key, func() any {
		sm, ok := m.base.SingleAbstractMethod(t)
		return samResult{m: sm, ok: ok}
	}).(samResult)
	return r.m, r.ok
}
