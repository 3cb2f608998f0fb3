package wire

// headerSize is the fixed 12-octet DNS header (§3).
const headerSize = 12

// DecodeHeader reads only the 12-octet header, leaving the cursor
// positioned at the start of the question section. Decode uses it, and it
// is exported for callers that need the transaction ID without a full
// decode.
func DecodeHeader(b *Buffer) (Header, error) {
	id, err := b.ReadUint16()
	if err != nil {
		return Header{}, ErrTruncated
	}
	flags, err := b.ReadUint16()
	if err != nil {
		return Header{}, ErrTruncated
	}
	qd, err := b.ReadUint16()
	if err != nil {
		return Header{}, ErrTruncated
	}
	an, err := b.ReadUint16()
	if err != nil {
		return Header{}, ErrTruncated
	}
	ns, err := b.ReadUint16()
	if err != nil {
		return Header{}, ErrTruncated
	}
	ar, err := b.ReadUint16()
	if err != nil {
		return Header{}, ErrTruncated
	}

	h := Header{
		ID:      id,
		QR:      flags&0x8000 != 0,
		Opcode:  uint8(flags>>11) & 0x0F,
		AA:      flags&0x0400 != 0,
		TC:      flags&0x0200 != 0,
		RD:      flags&0x0100 != 0,
		RA:      flags&0x0080 != 0,
		Z:       uint8(flags>>4) & 0x07,
		RCode:   uint8(flags) & 0x0F,
		QDCount: qd,
		ANCount: an,
		NSCount: ns,
		ARCount: ar,
	}
	return h, nil
}

// encodeHeader writes the 12-octet header.
func encodeHeader(b *Buffer, h Header) {
	b.WriteUint16(h.ID)

	var flags uint16
	if h.QR {
		flags |= 0x8000
	}
	flags |= uint16(h.Opcode&0x0F) << 11
	if h.AA {
		flags |= 0x0400
	}
	if h.TC {
		flags |= 0x0200
	}
	if h.RD {
		flags |= 0x0100
	}
	if h.RA {
		flags |= 0x0080
	}
	flags |= uint16(h.Z&0x07) << 4
	flags |= uint16(h.RCode & 0x0F)
	b.WriteUint16(flags)

	b.WriteUint16(h.QDCount)
	b.WriteUint16(h.ANCount)
	b.WriteUint16(h.NSCount)
	b.WriteUint16(h.ARCount)
}

// Decode parses a complete DNS message from raw wire bytes (§4.2.4). The
// section counts in the header drive how many entries are read from each
// section; a count that overruns the buffer surfaces as ErrTruncated
// rather than panicking.
func Decode(raw []byte) (*Packet, error) {
	if len(raw) < headerSize {
		return nil, ErrTruncated
	}
	b := NewBuffer(raw)

	h, err := DecodeHeader(b)
	if err != nil {
		return nil, err
	}

	pkt := &Packet{Header: h}

	pkt.Question = make([]Question, 0, h.QDCount)
	for i := uint16(0); i < h.QDCount; i++ {
		q, err := b.decodeQuestion()
		if err != nil {
			return nil, err
		}
		pkt.Question = append(pkt.Question, q)
	}

	decodeSection := func(count uint16) ([]RR, error) {
		rrs := make([]RR, 0, count)
		for i := uint16(0); i < count; i++ {
			rr, err := b.decodeRR()
			if err != nil {
				return nil, err
			}
			rrs = append(rrs, rr)
		}
		return rrs, nil
	}

	if pkt.Answer, err = decodeSection(h.ANCount); err != nil {
		return nil, err
	}
	if pkt.Authority, err = decodeSection(h.NSCount); err != nil {
		return nil, err
	}
	if pkt.Additional, err = decodeSection(h.ARCount); err != nil {
		return nil, err
	}

	return pkt, nil
}

// Encode serializes a complete DNS message to wire bytes (§4.2.4). The
// header's section counts are overwritten to match the actual number of
// entries in each slice, so callers never need to keep them in sync by
// hand.
func Encode(pkt *Packet) ([]byte, error) {
	h := pkt.Header
	h.QDCount = uint16(len(pkt.Question))
	h.ANCount = uint16(len(pkt.Answer))
	h.NSCount = uint16(len(pkt.Authority))
	h.ARCount = uint16(len(pkt.Additional))

	b := NewWriteBuffer(512)
	encodeHeader(b, h)

	for _, q := range pkt.Question {
		if err := b.encodeQuestion(q); err != nil {
			return nil, err
		}
	}
	for _, rr := range pkt.Answer {
		if err := b.encodeRR(rr); err != nil {
			return nil, err
		}
	}
	for _, rr := range pkt.Authority {
		if err := b.encodeRR(rr); err != nil {
			return nil, err
		}
	}
	for _, rr := range pkt.Additional {
		if err := b.encodeRR(rr); err != nil {
			return nil, err
		}
	}

	if b.Len() > MaxMessageSize {
		return nil, ErrNameTooLong
	}
	return b.Bytes(), nil
}
