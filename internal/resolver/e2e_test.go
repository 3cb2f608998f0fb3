package resolver

import (
	"net"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnsscience/dnscore/internal/authoritative"
	"github.com/dnsscience/dnscore/internal/idgen"
	"github.com/dnsscience/dnscore/internal/store"
	"github.com/dnsscience/dnscore/internal/transport"
	"github.com/dnsscience/dnscore/internal/wire"
)

// startAuthoritative runs a real UDP authoritative server for zone on an
// ephemeral loopback port, counting the requests it handles.
func startAuthoritative(t *testing.T, zone *store.Zone, hits *atomic.Int32) string {
	t.Helper()
	srv, err := transport.ListenUDP("127.0.0.1:0", func(req []byte, _ *net.UDPAddr) []byte {
		hits.Add(1)
		pkt, err := wire.Decode(req)
		if err != nil {
			return nil
		}
		raw, err := wire.Encode(authoritative.Respond(zone, pkt))
		if err != nil {
			return nil
		}
		return raw
	})
	require.NoError(t, err)

	stop := make(chan struct{})
	go srv.Serve(stop)
	t.Cleanup(func() {
		close(stop)
		srv.Close()
	})
	return srv.LocalAddr().String()
}

// TestRecursiveResolutionOverRealSockets walks the whole pipeline of §2: a
// stub client speaks length-prefixed TCP to the recursive resolver, which
// walks a real UDP delegation chain (root referral, then the delegated
// zone server), and a repeated query is served from cache with no further
// upstream traffic.
func TestRecursiveResolutionOverRealSockets(t *testing.T) {
	root := store.NewZone("root")
	root.AddRecord(wire.RR{Name: "baidu.com", Type: wire.TypeNS, Class: wire.ClassIN, TTL: 60, RData: "ns2.local"})
	root.AddRecord(wire.RR{Name: "ns2.local", Type: wire.TypeA, Class: wire.ClassIN, TTL: 60, RData: "127.0.0.4"})

	s2 := store.NewZone("s2")
	s2.AddRecord(wire.RR{Name: "www.baidu.com", Type: wire.TypeCNAME, Class: wire.ClassIN, TTL: 60, RData: "www.a.shifen.com"})
	s2.AddRecord(wire.RR{Name: "www.a.shifen.com", Type: wire.TypeA, Class: wire.ClassIN, TTL: 60, RData: "14.215.177.38"})
	s2.AddRecord(wire.RR{Name: "www.a.shifen.com", Type: wire.TypeA, Class: wire.ClassIN, TTL: 60, RData: "14.215.177.39"})

	var rootHits, s2Hits atomic.Int32
	rootAddr := startAuthoritative(t, root, &rootHits)
	s2Addr := startAuthoritative(t, s2, &s2Hits)

	// The delegation glue says ns2.local lives at 127.0.0.4:53, but the
	// test server holds an ephemeral port; remap that one address and send
	// everything else over the real wire untouched.
	exchange := func(addr string, raw []byte) ([]byte, error) {
		if addr == "127.0.0.4:53" {
			addr = s2Addr
		}
		return transport.ExchangeUDP(addr, raw)
	}

	cache := store.NewCache()
	r := New(cache, Config{RootAddr: rootAddr, Exchange: exchange})

	tcpSrv, err := transport.ListenTCP("127.0.0.1:0", func(req []byte) []byte {
		pkt, err := wire.Decode(req)
		if err != nil {
			return nil
		}
		raw, err := wire.Encode(r.Resolve(pkt))
		if err != nil {
			return nil
		}
		return raw
	})
	require.NoError(t, err)
	stop := make(chan struct{})
	go tcpSrv.Serve(stop)
	t.Cleanup(func() {
		close(stop)
		tcpSrv.Close()
	})

	query := func() *wire.Packet {
		req := &wire.Packet{
			Header:   wire.Header{ID: idgen.TransactionID(), RD: true},
			Question: []wire.Question{{Name: "www.baidu.com", Type: wire.TypeA, Class: wire.ClassIN}},
		}
		raw, err := wire.Encode(req)
		require.NoError(t, err)
		rawReply, err := transport.ExchangeTCP(tcpSrv.LocalAddr().String(), raw)
		require.NoError(t, err)
		reply, err := wire.Decode(rawReply)
		require.NoError(t, err)
		require.Equal(t, req.Header.ID, reply.Header.ID)
		return reply
	}

	first := query()
	require.Len(t, first.Answer, 3)
	assert.Equal(t, wire.TypeCNAME, first.Answer[0].Type)
	assert.Equal(t, "14.215.177.38", first.Answer[1].RData)
	assert.Equal(t, "14.215.177.39", first.Answer[2].RData)
	assert.Equal(t, wire.RCodeNoError, first.Header.RCode)
	assert.EqualValues(t, 1, rootHits.Load())
	assert.EqualValues(t, 1, s2Hits.Load())

	second := query()
	assert.ElementsMatch(t, first.Answer, second.Answer)
	assert.EqualValues(t, 1, rootHits.Load(), "cache hit must not reach the root again")
	assert.EqualValues(t, 1, s2Hits.Load(), "cache hit must not reach the zone server again")
}
