package store

import (
	"testing"
	"time"

	"github.com/dnsscience/dnscore/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZoneLookupExactNameCaseSensitive(t *testing.T) {
	z := NewZone("example.com")
	z.AddRecord(wire.RR{Name: "www.example.com", Type: wire.TypeA, Class: wire.ClassIN, TTL: 60, RData: "10.0.0.1"})
	z.AddRecord(wire.RR{Name: "WWW.example.com", Type: wire.TypeA, Class: wire.ClassIN, TTL: 60, RData: "10.0.0.2"})

	got := z.Lookup("www.example.com", wire.TypeA, wire.ClassIN, false)
	require.Len(t, got, 1)
	assert.Equal(t, "10.0.0.1", got[0].RData)

	assert.Empty(t, z.Lookup("www.EXAMPLE.com", wire.TypeA, wire.ClassIN, false))
}

func TestZoneLookupIncludesCNAME(t *testing.T) {
	z := NewZone("example.com")
	z.AddRecord(wire.RR{Name: "alias.example.com", Type: wire.TypeCNAME, Class: wire.ClassIN, TTL: 60, RData: "target.example.com"})

	got := z.Lookup("alias.example.com", wire.TypeA, wire.ClassIN, true)
	require.Len(t, got, 1)
	assert.Equal(t, uint16(wire.TypeCNAME), got[0].Type)

	assert.Empty(t, z.Lookup("alias.example.com", wire.TypeA, wire.ClassIN, false))
}

func TestZoneLookupRejectsNonINClass(t *testing.T) {
	z := NewZone("example.com")
	z.AddRecord(wire.RR{Name: "www.example.com", Type: wire.TypeA, Class: wire.ClassIN, TTL: 60, RData: "10.0.0.1"})
	assert.Empty(t, z.Lookup("www.example.com", wire.TypeA, 99, false))
}

func TestCacheConsistencyWithinTTL(t *testing.T) {
	c := NewCache()
	base := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return base }

	rr := wire.RR{Name: "host.example.com", Type: wire.TypeA, Class: wire.ClassIN, TTL: 10, RData: "192.0.2.1"}
	c.Put(rr)

	c.now = func() time.Time { return base.Add(9 * time.Second) }
	got := c.Get("host.example.com", wire.TypeA, wire.ClassIN)
	require.Len(t, got, 1)
	assert.Equal(t, rr, got[0])
}

func TestCacheExpiresAtTTL(t *testing.T) {
	c := NewCache()
	base := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return base }

	rr := wire.RR{Name: "host.example.com", Type: wire.TypeA, Class: wire.ClassIN, TTL: 10, RData: "192.0.2.1"}
	c.Put(rr)

	c.now = func() time.Time { return base.Add(10 * time.Second) }
	assert.Empty(t, c.Get("host.example.com", wire.TypeA, wire.ClassIN))
}

func TestCacheGetReturnsCNAMEForAnyQueryType(t *testing.T) {
	c := NewCache()
	base := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return base }

	cname := wire.RR{Name: "alias.example.com", Type: wire.TypeCNAME, Class: wire.ClassIN, TTL: 60, RData: "target.example.com"}
	c.Put(cname)

	got := c.Get("alias.example.com", wire.TypeA, wire.ClassIN)
	require.Len(t, got, 1)
	assert.Equal(t, cname, got[0])
}
