package wire

import (
	"errors"
	"strings"
)

const (
	maxLabelLength  = 63
	maxDomainLength = 255
	pointerTag      = 0xC0 // top two bits "11"
	pointerMask     = 0x3FFF
)

var (
	// ErrLabelTooLong is a format error: a label exceeds 63 octets.
	ErrLabelTooLong = errors.New("wire: label exceeds 63 octets")
	// ErrNameTooLong is a format error: an expanded name exceeds 255 octets.
	ErrNameTooLong = errors.New("wire: name exceeds 255 octets")
	// ErrBadLabelTag is a format error: a length octet has bits 10 or 01.
	ErrBadLabelTag = errors.New("wire: invalid label length tag")
	// ErrBadPointer is a format error: a compression pointer does not
	// refer strictly backwards in the message (spec.md §9: this also
	// closes the cyclic-pointer gap the original source leaves open).
	ErrBadPointer = errors.New("wire: compression pointer does not point backwards")
	// ErrUnknownPointer is a soft failure: a pointer references an offset
	// the decoder never recorded a name at. Per spec.md §4.2.1 this is a
	// warning, not a hard failure: expansion stops with what has been
	// accumulated so far.
	ErrUnknownPointer = errors.New("wire: compression pointer to unknown offset")
)

// decodeName reads a domain name starting at the buffer's current cursor,
// following at most one compression pointer chain, and returns it as a
// dot-separated ASCII string with no trailing root dot (§3 invariant).
//
// Once a label run has been read (up to its terminator or trailing
// pointer), the decoder records, for every offset at which one of its
// labels starts, the name that results from expanding everything from
// there onward — this is what lets a later pointer into the *middle* of a
// previously seen name resolve correctly (§4.2.1).
func (b *Buffer) decodeName() (string, error) {
	startOffset := b.pos
	// localLabels holds only the labels actually read from the wire
	// starting at startOffset, never labels borrowed from a resolved
	// pointer's target — rememberSuffixes assumes contiguous wire layout,
	// which only holds for this call's own label run.
	var localLabels []string
	returnPos := -1

	for {
		tag, err := b.PeekUint8()
		if err != nil {
			return "", ErrTruncated
		}

		switch tag & 0xC0 {
		case 0x00:
			length, err := b.ReadUint8()
			if err != nil {
				return "", ErrTruncated
			}
			if length == 0 {
				returnPos = b.pos
				name := strings.Join(localLabels, ".")
				if len(name)+2 > maxDomainLength {
					return "", ErrNameTooLong
				}
				b.rememberSuffixes(localLabels, startOffset, "")
				b.pos = returnPos
				return name, nil
			}
			if int(length) > maxLabelLength {
				return "", ErrLabelTooLong
			}
			raw, err := b.ReadBytes(int(length))
			if err != nil {
				return "", ErrTruncated
			}
			localLabels = append(localLabels, string(raw))

		case pointerTag:
			lo, err := b.ReadUint8()
			if err != nil {
				return "", ErrTruncated
			}
			hi, err := b.ReadUint8()
			if err != nil {
				return "", ErrTruncated
			}
			returnPos = b.pos
			ptr := (int(lo&0x3F) << 8) | int(hi)
			if ptr >= startOffset {
				return "", ErrBadPointer
			}
			b.pos = returnPos

			known, ok := b.lookupDecodedName(ptr)
			if !ok {
				// Soft failure: stop with whatever has been accumulated.
				// The name is incomplete, so nothing is indexed for it —
				// indexing an incomplete expansion would let a later
				// pointer resolve to the wrong name.
				return strings.Join(localLabels, "."), ErrUnknownPointer
			}

			// Index the locally read labels against the *full* expanded
			// name (local labels plus the resolved suffix) — a pointer
			// landing on an interior label of this run must resolve to
			// the same name a direct read from there would produce.
			b.rememberSuffixes(localLabels, startOffset, known)

			var full []string
			full = append(full, localLabels...)
			if known != "" {
				full = append(full, strings.Split(known, ".")...)
			}
			name := strings.Join(full, ".")
			if len(name)+2 > maxDomainLength {
				return "", ErrNameTooLong
			}
			return name, nil

		default:
			return "", ErrBadLabelTag
		}
	}
}

// rememberSuffixes records, for every offset at which a locally-read
// label starts, the fully expanded name from there onward — localLabels
// plus resolvedSuffix (the name a trailing compression pointer resolved
// to, or "" if this run ended in a zero-length terminator instead). Only
// offsets within localLabels' own contiguous wire run are indexed: those
// are the only offsets this call actually knows the layout of.
func (b *Buffer) rememberSuffixes(localLabels []string, startOffset int, resolvedSuffix string) {
	b.rememberDecodedName(startOffset, joinWithSuffix(localLabels, resolvedSuffix))

	offset := startOffset
	for i := 0; i < len(localLabels); i++ {
		if i > 0 {
			b.rememberDecodedName(offset, joinWithSuffix(localLabels[i:], resolvedSuffix))
		}
		offset += 1 + len(localLabels[i])
	}
}

// joinWithSuffix joins labels with a dot, appending resolvedSuffix (an
// already-expanded name, or "") as the final component(s).
func joinWithSuffix(labels []string, resolvedSuffix string) string {
	if resolvedSuffix == "" {
		return strings.Join(labels, ".")
	}
	if len(labels) == 0 {
		return resolvedSuffix
	}
	return strings.Join(labels, ".") + "." + resolvedSuffix
}

// encodeName writes a domain name, compressing against any suffix
// already written earlier in the message (§4.2.2).
func (b *Buffer) encodeName(name string) error {
	name = strings.TrimSuffix(name, ".")
	// A dotted name of n octets occupies n+2 on the wire: each dot
	// becomes a length octet, plus the leading length and the terminator.
	if len(name)+2 > maxDomainLength {
		return ErrNameTooLong
	}

	var labels []string
	if name != "" {
		labels = strings.Split(name, ".")
	}

	for i := 0; i < len(labels); i++ {
		if len(labels[i]) > maxLabelLength {
			return ErrLabelTooLong
		}
	}

	for i := 0; i < len(labels); i++ {
		suffix := strings.Join(labels[i:], ".")
		if off, ok := b.lookupEncodedSuffix(suffix); ok {
			b.WriteUint16(uint16(pointerTag<<8) | uint16(off&pointerMask))
			return nil
		}
		// A pointer can only address 14 bits of offset; suffixes that
		// start beyond that are written in full but never indexed.
		if b.Len() <= pointerMask {
			b.rememberEncodedSuffix(suffix, b.Len())
		}
		b.WriteUint8(uint8(len(labels[i])))
		b.WriteBytes([]byte(labels[i]))
	}

	b.WriteUint8(0)
	return nil
}
