package wire

import (
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
)

// ErrBadRData is a format error: an RDATA payload does not match what its
// TYPE requires (§4.2.3).
var ErrBadRData = errors.New("wire: malformed rdata for record type")

// ErrRDLengthMismatch is a soft failure: a record's encoded RDATA does not
// consume exactly RDLENGTH octets. Per spec.md §4.2.3 this is recoverable —
// the decoder repositions to start+RDLENGTH and continues.
var ErrRDLengthMismatch = errors.New("wire: rdlength does not match decoded rdata")

// decodeQuestion reads a single question-section entry.
func (b *Buffer) decodeQuestion() (Question, error) {
	name, err := b.decodeName()
	if err != nil && !errors.Is(err, ErrUnknownPointer) {
		// An unknown pointer target is a warning (§4.2.1): the name stops
		// at whatever was accumulated and decoding continues.
		return Question{}, err
	}
	qtype, err := b.ReadUint16()
	if err != nil {
		return Question{}, ErrTruncated
	}
	qclass, err := b.ReadUint16()
	if err != nil {
		return Question{}, ErrTruncated
	}
	return Question{Name: name, Type: qtype, Class: qclass}, nil
}

// encodeQuestion writes a single question-section entry.
func (b *Buffer) encodeQuestion(q Question) error {
	if err := b.encodeName(q.Name); err != nil {
		return err
	}
	b.WriteUint16(q.Type)
	b.WriteUint16(q.Class)
	return nil
}

// decodeRR reads a single resource record: NAME, TYPE, CLASS, TTL,
// RDLENGTH, and RDATA (§3, §4.2.3).
func (b *Buffer) decodeRR() (RR, error) {
	name, err := b.decodeName()
	if err != nil && !errors.Is(err, ErrUnknownPointer) {
		return RR{}, err
	}
	rtype, err := b.ReadUint16()
	if err != nil {
		return RR{}, ErrTruncated
	}
	rclass, err := b.ReadUint16()
	if err != nil {
		return RR{}, ErrTruncated
	}
	ttl, err := b.ReadUint32()
	if err != nil {
		return RR{}, ErrTruncated
	}
	rdlength, err := b.ReadUint16()
	if err != nil {
		return RR{}, ErrTruncated
	}

	rdataStart := b.pos
	rdata, err := b.decodeRData(rtype, int(rdlength))
	if err != nil && !errors.Is(err, ErrRDLengthMismatch) {
		return RR{}, err
	}
	mismatch := err != nil

	wantEnd := rdataStart + int(rdlength)
	if b.pos != wantEnd {
		mismatch = true
	}
	if mismatch {
		log.Printf("wire: rr %q type %s: rdata disagrees with rdlength %d, resyncing", name, TypeName(rtype), rdlength)
		if seekErr := b.Seek(wantEnd); seekErr != nil {
			return RR{}, ErrTruncated
		}
	}

	return RR{Name: name, Type: rtype, Class: rclass, TTL: ttl, RData: rdata}, nil
}

// decodeRData decodes the RDATA for one of the supported types. Unsupported
// types are passed through as a hex-encoded opaque blob so a packet
// containing them can still round-trip through the section lists.
func (b *Buffer) decodeRData(rtype uint16, rdlength int) (string, error) {
	switch rtype {
	case TypeA:
		raw, err := b.ReadBytes(4)
		if err != nil {
			return "", ErrTruncated
		}
		return net.IP(raw).String(), nil

	case TypeNS, TypeCNAME, TypePTR:
		name, err := b.decodeName()
		if err != nil && !errors.Is(err, ErrUnknownPointer) {
			return "", err
		}
		return name, nil

	case TypeMX:
		pref, err := b.ReadUint16()
		if err != nil {
			return "", ErrTruncated
		}
		exchange, err := b.decodeName()
		if err != nil && !errors.Is(err, ErrUnknownPointer) {
			return "", err
		}
		return fmt.Sprintf("%d,%s", pref, exchange), nil

	default:
		raw, err := b.ReadBytes(rdlength)
		if err != nil {
			return "", ErrTruncated
		}
		return fmt.Sprintf("%x", raw), nil
	}
}

// encodeRR writes a resource record, back-patching RDLENGTH once the RDATA
// has been serialized (§4.2.3).
func (b *Buffer) encodeRR(rr RR) error {
	if err := b.encodeName(rr.Name); err != nil {
		return err
	}
	b.WriteUint16(rr.Type)
	b.WriteUint16(rr.Class)
	b.WriteUint32(rr.TTL)

	rdlenOffset := b.Len()
	b.WriteUint16(0) // placeholder, patched below

	rdataStart := b.Len()
	if err := b.encodeRData(rr.Type, rr.RData); err != nil {
		return err
	}
	rdlen := b.Len() - rdataStart
	if rdlen > 0xFFFF {
		return ErrNameTooLong
	}
	return b.PatchUint16At(rdlenOffset, uint16(rdlen))
}

// encodeRData writes the RDATA payload for one of the supported types.
func (b *Buffer) encodeRData(rtype uint16, rdata string) error {
	switch rtype {
	case TypeA:
		ip := net.ParseIP(rdata).To4()
		if ip == nil {
			return ErrBadRData
		}
		b.WriteBytes(ip)
		return nil

	case TypeNS, TypeCNAME, TypePTR:
		return b.encodeName(rdata)

	case TypeMX:
		parts := strings.SplitN(rdata, ",", 2)
		if len(parts) != 2 {
			return ErrBadRData
		}
		pref, err := strconv.ParseUint(parts[0], 10, 16)
		if err != nil {
			return ErrBadRData
		}
		b.WriteUint16(uint16(pref))
		return b.encodeName(parts[1])

	default:
		raw := make([]byte, len(rdata)/2)
		for i := range raw {
			var v int
			if _, err := fmt.Sscanf(rdata[i*2:i*2+2], "%02x", &v); err != nil {
				return ErrBadRData
			}
			raw[i] = byte(v)
		}
		b.WriteBytes(raw)
		return nil
	}
}
