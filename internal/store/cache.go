package store

import (
	"sync"
	"time"

	"github.com/dchest/siphash"
	"github.com/dnsscience/dnscore/internal/wire"
)

// cacheKeySecret is a fixed, process-local SipHash key. The cache does not
// need a cryptographic keying property — the hash only selects a map
// bucket — but the teacher's cookie package already pulls in SipHash for
// exactly this "deterministic small-input digest" role, so the cache
// reuses the construction instead of open-coding a weaker hash.
var cacheKeySecret = [16]byte{
	0x64, 0x6e, 0x73, 0x63, 0x6f, 0x72, 0x65, 0x2d,
	0x63, 0x61, 0x63, 0x68, 0x65, 0x2d, 0x6b, 0x31,
}

func cacheKey(name string, rtype, class uint16) uint64 {
	h := siphash.New(cacheKeySecret[:])
	h.Write([]byte(name))
	h.Write([]byte{byte(rtype >> 8), byte(rtype), byte(class >> 8), byte(class)})
	return h.Sum64()
}

// entry is one cached record plus its insertion time (§6.3: inserted_at).
type entry struct {
	rr        wire.RR
	insertion time.Time
}

// expired reports whether the entry is no longer valid at "now" per the
// §3 invariant: now < insertion_time + ttl.
func (e entry) expired(now time.Time) bool {
	return !now.Before(e.insertion.Add(time.Duration(e.rr.TTL) * time.Second))
}

// Cache is the resolver's TTL-keyed record cache (§4.3). It is a single
// in-process map guarded by a mutex: the system is single-threaded per
// request (§5), so the lock only protects against the cache being shared
// across a future concurrent caller, not against contention on the hot
// path. There is no background expiry sweep — entries are checked lazily
// on read, matching the "no coroutines, no background tasks" rule.
type Cache struct {
	mu      sync.Mutex
	entries map[uint64][]entry
	now     func() time.Time
}

// NewCache creates an empty cache using the real wall clock.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[uint64][]entry),
		now:     time.Now,
	}
}

// Put inserts rr tagged with the current wall-clock time (§4.3: cache_put).
func (c *Cache) Put(rr wire.RR) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey(rr.Name, rr.Type, rr.Class)
	c.entries[key] = append(c.entries[key], entry{rr: rr, insertion: c.now()})
}

// Get returns every unexpired entry whose name and class match and whose
// type is either qtype or CNAME (§4.3: cache_get). Expired entries
// encountered during the scan are dropped from the cache.
func (c *Cache) Get(name string, qtype, class uint16) []wire.RR {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var out []wire.RR

	for _, key := range []uint64{cacheKey(name, qtype, class), cacheKey(name, wire.TypeCNAME, class)} {
		live := c.entries[key][:0]
		for _, e := range c.entries[key] {
			if e.expired(now) {
				continue
			}
			live = append(live, e)
			out = append(out, e.rr)
		}
		if len(live) == 0 {
			delete(c.entries, key)
		} else {
			c.entries[key] = live
		}
		if qtype == wire.TypeCNAME {
			break // avoid double-counting when qtype already is CNAME
		}
	}
	return out
}
