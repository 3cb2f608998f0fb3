// Package store holds the abstract record store: authoritative zones and
// the resolver's TTL cache (§4.3, §6.3). Names are matched case-sensitively
// throughout — upper- and lower-case are distinct owner names, unlike a
// conformant DNS implementation, because the records this system serves
// never need case folding and the original source never performed it.
package store

import "github.com/dnsscience/dnscore/internal/wire"

// Zone is a set of authoritative records for one portion of the
// namespace, organized by owner name and then record type so exact-name
// lookups and NS-suffix walks are both direct map accesses.
type Zone struct {
	Name    string
	Records map[string]map[uint16][]wire.RR
}

// NewZone creates an empty zone.
func NewZone(name string) *Zone {
	return &Zone{
		Name:    name,
		Records: make(map[string]map[uint16][]wire.RR),
	}
}

// AddRecord appends rr to the zone under its own owner name.
func (z *Zone) AddRecord(rr wire.RR) {
	byType, ok := z.Records[rr.Name]
	if !ok {
		byType = make(map[uint16][]wire.RR)
		z.Records[rr.Name] = byType
	}
	byType[rr.Type] = append(byType[rr.Type], rr)
}

// Lookup returns every record whose owner name equals name exactly and
// whose class is IN, matching qtype exactly, or matching CNAME when
// includeCNAME is true (§4.3). Records of qtype come first, in insertion
// order, followed by the CNAME records, also in insertion order.
func (z *Zone) Lookup(name string, qtype, class uint16, includeCNAME bool) []wire.RR {
	if class != wire.ClassIN {
		return nil
	}
	byType, ok := z.Records[name]
	if !ok {
		return nil
	}

	var out []wire.RR
	out = append(out, byType[qtype]...)
	if includeCNAME && qtype != wire.TypeCNAME {
		out = append(out, byType[wire.TypeCNAME]...)
	}
	return out
}

// NameServers returns the NS records owned exactly by name, used by the
// authoritative responder's ancestor-suffix walk (§4.4 step 6).
func (z *Zone) NameServers(name string) []wire.RR {
	byType, ok := z.Records[name]
	if !ok {
		return nil
	}
	return byType[wire.TypeNS]
}

// AddressesFor returns the A records owned exactly by name, used to
// resolve glue (§4.4 step 7).
func (z *Zone) AddressesFor(name string) []wire.RR {
	byType, ok := z.Records[name]
	if !ok {
		return nil
	}
	return byType[wire.TypeA]
}
