package resolver

import (
	"testing"

	"github.com/dnsscience/dnscore/internal/store"
	"github.com/dnsscience/dnscore/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUpstream maps an address to the packet it should answer with,
// letting tests exercise the iterative walk without a real socket.
type fakeUpstream struct {
	byAddr map[string]*wire.Packet
	calls  int
}

func (f *fakeUpstream) exchange(addr string, raw []byte) ([]byte, error) {
	f.calls++
	req, err := wire.Decode(raw)
	if err != nil {
		return nil, err
	}
	pkt, ok := f.byAddr[addr]
	if !ok {
		return nil, assert.AnError
	}
	resp := *pkt
	resp.Header.ID = req.Header.ID
	return wire.Encode(&resp)
}

// Scenario 5/6 from spec.md §8: an empty-cache recursive resolve walks
// root -> baidu.com's nameserver -> answer, then a second identical query
// is served entirely from cache with no further upstream traffic.
func TestIterativeResolveThenCacheHit(t *testing.T) {
	root := &wire.Packet{
		Header: wire.Header{QR: true},
		Authority: []wire.RR{
			{Name: "baidu.com", Type: wire.TypeNS, Class: wire.ClassIN, TTL: 3600, RData: "ns2.local"},
		},
		Additional: []wire.RR{
			{Name: "ns2.local", Type: wire.TypeA, Class: wire.ClassIN, TTL: 3600, RData: "127.0.0.4"},
		},
	}
	zoneServer := &wire.Packet{
		Header: wire.Header{QR: true},
		Answer: []wire.RR{
			{Name: "www.baidu.com", Type: wire.TypeCNAME, Class: wire.ClassIN, TTL: 600, RData: "www.a.shifen.com"},
			{Name: "www.a.shifen.com", Type: wire.TypeA, Class: wire.ClassIN, TTL: 600, RData: "14.215.177.38"},
		},
	}

	fake := &fakeUpstream{byAddr: map[string]*wire.Packet{
		"127.0.0.7:53": root,
		"127.0.0.4:53": zoneServer,
	}}

	cache := store.NewCache()
	r := New(cache, Config{RootAddr: "127.0.0.7:53", Exchange: fake.exchange})

	req := &wire.Packet{
		Header:   wire.Header{ID: 7, RD: true},
		Question: []wire.Question{{Name: "www.baidu.com", Type: wire.TypeA, Class: wire.ClassIN}},
	}

	resp := r.Resolve(req)
	require.Len(t, resp.Answer, 2)
	assert.Equal(t, uint16(wire.TypeCNAME), resp.Answer[0].Type)
	assert.Equal(t, "14.215.177.38", resp.Answer[1].RData)
	assert.Equal(t, uint16(7), resp.Header.ID)

	callsAfterFirst := fake.calls
	assert.Greater(t, callsAfterFirst, 0)

	// Re-issue: must be served from cache, no new upstream calls.
	resp2 := r.Resolve(req)
	assert.Equal(t, callsAfterFirst, fake.calls)
	require.Len(t, resp2.Answer, 2)
	assert.ElementsMatch(t, resp.Answer, resp2.Answer)
}

func TestResolverRejectsUnsupportedType(t *testing.T) {
	cache := store.NewCache()
	r := New(cache, Config{RootAddr: "127.0.0.7:53", Exchange: func(string, []byte) ([]byte, error) {
		return nil, assert.AnError
	}})

	req := &wire.Packet{
		Header:   wire.Header{ID: 9, RD: true},
		Question: []wire.Question{{Name: "example.com", Type: 99, Class: wire.ClassIN}},
	}
	resp := r.Resolve(req)
	assert.Equal(t, wire.RCodeNotImp, resp.Header.RCode)
}

func TestResolverNXDomainWhenUpstreamUnreachable(t *testing.T) {
	cache := store.NewCache()
	r := New(cache, Config{RootAddr: "127.0.0.7:53", MaxIterations: 2, Exchange: func(string, []byte) ([]byte, error) {
		return nil, assert.AnError
	}})

	req := &wire.Packet{
		Header:   wire.Header{ID: 11, RD: true},
		Question: []wire.Question{{Name: "nowhere.invalid", Type: wire.TypeA, Class: wire.ClassIN}},
	}
	resp := r.Resolve(req)
	assert.Equal(t, wire.RCodeNXDomain, resp.Header.RCode)
}

func TestResolverIterationCapBoundsDelegationLoop(t *testing.T) {
	// A pathological delegation graph where every referral points back
	// into itself must not hang; it should simply exhaust MaxIterations.
	selfReferral := &wire.Packet{
		Header: wire.Header{QR: true},
		Authority: []wire.RR{
			{Name: "loop.example", Type: wire.TypeNS, Class: wire.ClassIN, TTL: 60, RData: "ns.loop.example"},
		},
		Additional: []wire.RR{
			{Name: "ns.loop.example", Type: wire.TypeA, Class: wire.ClassIN, TTL: 60, RData: "127.0.0.9"},
		},
	}
	fake := &fakeUpstream{byAddr: map[string]*wire.Packet{
		"127.0.0.7:53": selfReferral,
		"127.0.0.9:53": selfReferral,
	}}

	cache := store.NewCache()
	r := New(cache, Config{RootAddr: "127.0.0.7:53", MaxIterations: 4, Exchange: fake.exchange})

	req := &wire.Packet{
		Header:   wire.Header{ID: 13, RD: true},
		Question: []wire.Question{{Name: "loop.example", Type: wire.TypeA, Class: wire.ClassIN}},
	}
	resp := r.Resolve(req)
	assert.LessOrEqual(t, fake.calls, 4)
	assert.Empty(t, resp.Answer)
}
