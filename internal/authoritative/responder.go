// Package authoritative implements the authoritative responder: building
// a response packet from a request against a single zone's records
// (§4.4). It never forwards and never blocks on another server.
package authoritative

import (
	"strings"

	"github.com/dnsscience/dnscore/internal/metrics"
	"github.com/dnsscience/dnscore/internal/store"
	"github.com/dnsscience/dnscore/internal/wire"
)

func supportedType(t uint16) bool {
	switch t {
	case wire.TypeA, wire.TypeNS, wire.TypeCNAME, wire.TypePTR, wire.TypeMX:
		return true
	default:
		return false
	}
}

// Respond builds a response packet for req against zone, following the
// seven-step algorithm in §4.4.
func Respond(zone *store.Zone, req *wire.Packet) *wire.Packet {
	resp := &wire.Packet{
		Header: wire.Header{
			ID:     req.Header.ID,
			QR:     true,
			Opcode: req.Header.Opcode,
			RCode:  wire.RCodeNoError,
		},
	}

	anyRejected := false

	for _, q := range req.Question {
		metrics.QueriesTotal.WithLabelValues("authoritative", wire.TypeName(q.Type)).Inc()
		if !supportedType(q.Type) || q.Class != wire.ClassIN {
			anyRejected = true
			continue
		}
		resp.Question = append(resp.Question, q)

		cnameQueue := []string{}
		mxGlueQueue := []string{}
		nsGlueQueue := []string{}

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

		classify(zone.Lookup(q.Name, q.Type, wire.ClassIN, true))

		for len(cnameQueue) > 0 {
			target := cnameQueue[0]
			cnameQueue = cnameQueue[1:]
			classify(zone.Lookup(target, q.Type, wire.ClassIN, true))
		}

		for _, suffix := range ancestorSuffixes(q.Name) {
			nsRecords := zone.NameServers(suffix)
			resp.Authority = append(resp.Authority, nsRecords...)
			for _, ns := range nsRecords {
				nsGlueQueue = append(nsGlueQueue, ns.RData)
			}
		}

		for _, target := range mxGlueQueue {
			resp.Additional = append(resp.Additional, zone.AddressesFor(target)...)
		}
		for _, target := range nsGlueQueue {
			resp.Additional = append(resp.Additional, zone.AddressesFor(target)...)
		}
	}

	if len(resp.Answer) == 0 && len(resp.Authority) == 0 && len(resp.Additional) == 0 {
		resp.Header.RCode = wire.RCodeNXDomain
	}
	if anyRejected {
		resp.Header.RCode = wire.RCodeNotImp
	}

	metrics.ResponsesTotal.WithLabelValues(metrics.RCodeName(resp.Header.RCode)).Inc()
	return resp
}

// mxExchange extracts the exchange name from an MX RDATA string of the
// form "<preference>,<exchange>" (§3).
func mxExchange(rdata string) string {
	if i := strings.IndexByte(rdata, ','); i >= 0 {
		return rdata[i+1:]
	}
	return rdata
}

// ancestorSuffixes returns name, then everything after the first dot,
// then after the second, and so on, ending with the last label; the root
// (empty name) is not included (§4.4 step 6).
func ancestorSuffixes(name string) []string {
	var out []string
	for {
		out = append(out, name)
		i := strings.IndexByte(name, '.')
		if i < 0 {
			break
		}
		name = name[i+1:]
	}
	return out
}
