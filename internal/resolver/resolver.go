// Package resolver implements the iterative recursive resolver of §4.5:
// cache-first lookup, else an iterative walk of the delegation chain
// starting from a configured root, following CNAME chains and gluing MX
// and NS targets. Answer records and MX glue found on the iterative path
// are fed back into the cache; referral NS records and their glue are not.
package resolver

import (
	"context"
	"log"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dnsscience/dnscore/internal/idgen"
	"github.com/dnsscience/dnscore/internal/metrics"
	"github.com/dnsscience/dnscore/internal/store"
	"github.com/dnsscience/dnscore/internal/transport"
	"github.com/dnsscience/dnscore/internal/wire"
)

// DefaultMaxIterations bounds the pending-nameserver walk (§4.5, §9: the
// source has no such bound; a malicious or broken delegation graph could
// otherwise cause unbounded work).
const DefaultMaxIterations = 16

// Exchanger sends a raw DNS message to addr and returns the raw reply.
// Exists as a function type so tests can substitute an in-memory stand-in for
// a real UDP round trip.
type Exchanger func(addr string, raw []byte) ([]byte, error)

// Config configures a Resolver.
type Config struct {
	// RootAddr is the address (host:port) of the synthetic root
	// nameserver seeded at the start of every iterative walk (§4.5
	// step 4).
	RootAddr string

	// MaxIterations bounds the number of pending-nameserver queries
	// issued per question. Zero means DefaultMaxIterations.
	MaxIterations int

	// QueriesPerSecond paces outgoing upstream UDP queries, reusing the
	// teacher's token-bucket pattern (there: per-client ACL throttling;
	// here: resolver-to-upstream pacing, since this resolver has no
	// per-client concept). Zero disables pacing.
	QueriesPerSecond float64

	// Exchange overrides how an upstream UDP query is sent; nil uses
	// transport.ExchangeUDP.
	Exchange Exchanger
}

// Resolver answers recursive queries (§4.5).
type Resolver struct {
	cache         *store.Cache
	rootAddr      string
	maxIterations int
	limiter       *rate.Limiter
	exchange      Exchanger
}

// New creates a Resolver backed by cache.
func New(cache *store.Cache, cfg Config) *Resolver {
	maxIter := cfg.MaxIterations
	if maxIter == 0 {
		maxIter = DefaultMaxIterations
	}

	var limiter *rate.Limiter
	if cfg.QueriesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.QueriesPerSecond), int(cfg.QueriesPerSecond)+1)
	}

	exchange := cfg.Exchange
	if exchange == nil {
		exchange = func(addr string, raw []byte) ([]byte, error) {
			return transport.ExchangeUDP(addr, raw)
		}
	}

	return &Resolver{
		cache:         cache,
		rootAddr:      cfg.RootAddr,
		maxIterations: maxIter,
		limiter:       limiter,
		exchange:      exchange,
	}
}

func supportedType(t uint16) bool {
	switch t {
	case wire.TypeA, wire.TypeNS, wire.TypeCNAME, wire.TypePTR, wire.TypeMX:
		return true
	default:
		return false
	}
}

func mxExchange(rdata string) string {
	if i := strings.IndexByte(rdata, ','); i >= 0 {
		return rdata[i+1:]
	}
	return rdata
}

// Resolve answers req, consulting the cache before falling back to an
// iterative walk of the delegation chain (§4.5).
func (r *Resolver) Resolve(req *wire.Packet) *wire.Packet {
	start := time.Now()
	resp := &wire.Packet{
		Header: wire.Header{
			ID:     req.Header.ID,
			QR:     true,
			Opcode: req.Header.Opcode,
			RD:     req.Header.RD,
			RA:     true,
			RCode:  wire.RCodeNoError,
		},
	}

	anyRejected := false

	for _, q := range req.Question {
		if !supportedType(q.Type) || q.Class != wire.ClassIN {
			metrics.QueriesTotal.WithLabelValues("recursive", wire.TypeName(q.Type)).Inc()
			anyRejected = true
			continue
		}
		resp.Question = append(resp.Question, q)
		r.answerQuestion(resp, q)
	}

	if len(resp.Answer) == 0 && len(resp.Authority) == 0 && len(resp.Additional) == 0 {
		resp.Header.RCode = wire.RCodeNXDomain
	}
	if anyRejected {
		resp.Header.RCode = wire.RCodeNotImp
	}

	metrics.ResponsesTotal.WithLabelValues(metrics.RCodeName(resp.Header.RCode)).Inc()
	metrics.ObserveResolve(metrics.RCodeName(resp.Header.RCode), start)
	return resp
}

// answerQuestion implements §4.5 steps 3-4 for a single question,
// appending results directly into resp.
func (r *Resolver) answerQuestion(resp *wire.Packet, q wire.Question) {
	metrics.QueriesTotal.WithLabelValues("recursive", wire.TypeName(q.Type)).Inc()

	if hits := r.cache.Get(q.Name, q.Type, q.Class); len(hits) > 0 {
		metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
		r.classifyFromCache(resp, q, hits)
		return
	}
	metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
	r.resolveIterative(resp, q)
}

// classifyFromCache mirrors the authoritative responder's classification
// (§4.4 steps 4-5) but sources CNAME follow-up and MX glue from the cache
// instead of a zone (§4.5 step 3).
func (r *Resolver) classifyFromCache(resp *wire.Packet, q wire.Question, hits []wire.RR) {
	cnameQueue := []string{}
	mxGlueQueue := []string{}

	classify := func(rrs []wire.RR) {
		for _, rr := range rrs {
			switch {
			case rr.Type == wire.TypeCNAME && q.Type != wire.TypeCNAME:
				resp.Answer = append(resp.Answer, rr)
				cnameQueue = append(cnameQueue, rr.RData)
			case rr.Type == wire.TypeMX:
				resp.Answer = append(resp.Answer, rr)
				mxGlueQueue = append(mxGlueQueue, mxExchange(rr.RData))
			default:
				resp.Answer = append(resp.Answer, rr)
			}
		}
	}

	classify(hits)

	for len(cnameQueue) > 0 {
		target := cnameQueue[0]
		cnameQueue = cnameQueue[1:]
		classify(r.cache.Get(target, q.Type, wire.ClassIN))
	}

	for _, target := range mxGlueQueue {
		addrs := r.cache.Get(target, wire.TypeA, wire.ClassIN)
		if len(addrs) == 0 {
			log.Printf("resolver: no cached glue for mx exchange %q, skipping", target)
			continue
		}
		resp.Additional = append(resp.Additional, addrs...)
	}
}

// pendingNS is one nameserver the iterative walk still owes a query to
// (§4.5 step 4).
type pendingNS struct {
	name string
	addr string
}

// resolveIterative implements §4.5 step 4: seed the pending list with the
// synthetic root, then drain it in order, following delegations and
// caching every answer record and MX glue record along the way.
func (r *Resolver) resolveIterative(resp *wire.Packet, q wire.Question) {
	pending := []pendingNS{{name: "root", addr: r.rootAddr}}

	for i := 0; i < r.maxIterations && len(pending) > 0; i++ {
		next := pending[0]
		pending = pending[1:]

		reply, ok := r.queryNameserver(next.addr, q)
		if !ok {
			log.Printf("resolver: nameserver %s (%s) produced no usable reply, trying next", next.name, next.addr)
			continue
		}

		for _, rr := range reply.Answer {
			resp.Answer = append(resp.Answer, rr)
			r.cache.Put(rr)
			if rr.Type == wire.TypeMX {
				exchange := mxExchange(rr.RData)
				if glue := findAdditionalA(reply, exchange); glue != nil {
					resp.Additional = append(resp.Additional, *glue)
					r.cache.Put(*glue)
				}
			}
		}

		for _, ns := range reply.Authority {
			if ns.Type != wire.TypeNS {
				continue
			}
			if glue := findAdditionalA(reply, ns.RData); glue != nil {
				pending = append(pending, pendingNS{name: ns.RData, addr: glue.RData + ":53"})
			}
		}
	}
}

// findAdditionalA returns the first A record in reply's additional
// section whose name equals target, as used for both MX glue (§4.5
// step 4d) and NS delegation-follow (§4.5 step 4e).
func findAdditionalA(reply *wire.Packet, target string) *wire.RR {
	for i := range reply.Additional {
		rr := reply.Additional[i]
		if rr.Type == wire.TypeA && rr.Name == target {
			return &rr
		}
	}
	return nil
}

// queryNameserver sends q to addr over UDP and decodes the reply. A
// missing or undecodable reply is a soft failure (§4.5 step 4b, §7): the
// caller moves on to the next pending nameserver.
func (r *Resolver) queryNameserver(addr string, q wire.Question) (*wire.Packet, bool) {
	if r.limiter != nil {
		_ = r.limiter.Wait(context.Background())
	}

	req := &wire.Packet{
		Header:   wire.Header{ID: idgen.TransactionID(), RD: true},
		Question: []wire.Question{q},
	}
	raw, err := wire.Encode(req)
	if err != nil {
		return nil, false
	}

	rawReply, err := r.exchange(addr, raw)
	if err != nil {
		return nil, false
	}

	reply, err := wire.Decode(rawReply)
	if err != nil {
		return nil, false
	}
	if reply.Header.ID != req.Header.ID {
		return nil, false
	}
	return reply, true
}
