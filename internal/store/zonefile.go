package store

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dnsscience/dnscore/internal/wire"
	"gopkg.in/yaml.v3"
)

// zoneFile is the on-disk shape of a ".dnszone" file, trimmed from the
// teacher's much larger format down to the record types this system
// supports: A, NS, CNAME, PTR, MX (no SOA, AAAA, TXT, SRV, DNSSEC, or
// template/apply sections).
type zoneFile struct {
	Zone    zoneSection              `yaml:"zone"`
	Records map[string]recordSection `yaml:"records"`
}

type zoneSection struct {
	Name string `yaml:"name"`
	TTL  uint32 `yaml:"ttl,omitempty"`
}

// recordSection lists the records owned by one name. A, NS and MX may hold
// either a single value or a list, since a name commonly owns more than
// one A or MX record; interface{} lets the YAML decoder accept both
// shapes the way the teacher's format does. CNAME and PTR hold a single
// name.
type recordSection struct {
	A     interface{} `yaml:"A,omitempty"`
	NS    interface{} `yaml:"NS,omitempty"`
	CNAME string      `yaml:"CNAME,omitempty"`
	PTR   string      `yaml:"PTR,omitempty"`
	MX    interface{} `yaml:"MX,omitempty"`
	TTL   uint32      `yaml:"ttl,omitempty"`
}

type mxEntry struct {
	Preference int    `yaml:"preference"`
	Exchange   string `yaml:"exchange"`
}

const defaultTTL = 3600

// LoadZoneFile reads a YAML zone definition from path and returns a
// populated Zone (§4.3, §6.3).
func LoadZoneFile(path string) (*Zone, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("store: read zone file: %w", err)
	}

	var zf zoneFile
	if err := yaml.Unmarshal(raw, &zf); err != nil {
		return nil, fmt.Errorf("store: parse zone file %s: %w", path, err)
	}
	if zf.Zone.Name == "" {
		return nil, fmt.Errorf("store: zone file %s missing zone.name", path)
	}

	zoneTTL := zf.Zone.TTL
	if zoneTTL == 0 {
		zoneTTL = defaultTTL
	}

	z := NewZone(zf.Zone.Name)
	for owner, rec := range zf.Records {
		ttl := rec.TTL
		if ttl == 0 {
			ttl = zoneTTL
		}

		for _, addr := range toStringList(rec.A) {
			z.AddRecord(wire.RR{Name: owner, Type: wire.TypeA, Class: wire.ClassIN, TTL: ttl, RData: addr})
		}
		for _, ns := range toStringList(rec.NS) {
			z.AddRecord(wire.RR{Name: owner, Type: wire.TypeNS, Class: wire.ClassIN, TTL: ttl, RData: ns})
		}
		if rec.CNAME != "" {
			z.AddRecord(wire.RR{Name: owner, Type: wire.TypeCNAME, Class: wire.ClassIN, TTL: ttl, RData: rec.CNAME})
		}
		if rec.PTR != "" {
			z.AddRecord(wire.RR{Name: owner, Type: wire.TypePTR, Class: wire.ClassIN, TTL: ttl, RData: rec.PTR})
		}
		for _, mx := range toMXList(rec.MX) {
			rdata := fmt.Sprintf("%d,%s", mx.Preference, mx.Exchange)
			z.AddRecord(wire.RR{Name: owner, Type: wire.TypeMX, Class: wire.ClassIN, TTL: ttl, RData: rdata})
		}
	}

	return z, nil
}

// toStringList normalizes a YAML field that may be a single string or a
// list of strings.
func toStringList(v interface{}) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return []string{val}
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// toMXList normalizes the MX field, which may be a single "pref exchange"
// map or a list of them.
func toMXList(v interface{}) []mxEntry {
	switch val := v.(type) {
	case nil:
		return nil
	case map[string]interface{}:
		if e, ok := parseMXMap(val); ok {
			return []mxEntry{e}
		}
		return nil
	case []interface{}:
		var out []mxEntry
		for _, item := range val {
			if m, ok := item.(map[string]interface{}); ok {
				if e, ok := parseMXMap(m); ok {
					out = append(out, e)
				}
			}
		}
		return out
	default:
		return nil
	}
}

func parseMXMap(m map[string]interface{}) (mxEntry, bool) {
	exchange, _ := m["exchange"].(string)
	if exchange == "" {
		return mxEntry{}, false
	}
	var pref int
	switch p := m["preference"].(type) {
	case int:
		pref = p
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err == nil {
			pref = n
		}
	}
	return mxEntry{Preference: pref, Exchange: exchange}, true
}
