// Command dnsquery sends a single DNS question to a server and prints the
// response (§6.2). It speaks TCP to the local recursive resolver (the
// default) and UDP when pointed directly at an authoritative server.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dnsscience/dnscore/internal/idgen"
	"github.com/dnsscience/dnscore/internal/transport"
	"github.com/dnsscience/dnscore/internal/wire"
)

var (
	server = flag.String("server", "127.0.0.2:53", "server address to query")
	useUDP = flag.Bool("udp", false, "query over UDP instead of TCP (for authoritative servers)")
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: dnsquery [-server addr] [-udp] <name> <type>\n")
	fmt.Fprintf(os.Stderr, "  <type> is one of A NS MX CNAME PTR\n")
	fmt.Fprintf(os.Stderr, "  for PTR, <name> is an IPv4 dotted-quad; it is reversed and suffixed with .in-addr.arpa\n")
}

func main() {
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) != 2 {
		usage()
		os.Exit(1)
	}

	name, typeName := args[0], strings.ToUpper(args[1])
	qtype, ok := wire.TypeFromName(typeName)
	if !ok {
		fmt.Fprintf(os.Stderr, "dnsquery: unsupported type %q\n", args[1])
		os.Exit(1)
	}

	if qtype == wire.TypePTR {
		reversed, err := reverseIPv4(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "dnsquery: %v\n", err)
			os.Exit(1)
		}
		name = reversed
	}

	req := &wire.Packet{
		Header:   wire.Header{ID: idgen.TransactionID(), RD: true},
		Question: []wire.Question{{Name: name, Type: qtype, Class: wire.ClassIN}},
	}
	raw, err := wire.Encode(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dnsquery: encode request: %v\n", err)
		os.Exit(1)
	}

	exchange := transport.ExchangeTCP
	if *useUDP {
		exchange = transport.ExchangeUDP
	}
	rawReply, err := exchange(*server, raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dnsquery: %v\n", err)
		os.Exit(1)
	}

	reply, err := wire.Decode(rawReply)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dnsquery: decode reply: %v\n", err)
		os.Exit(1)
	}

	printPacket(reply)
}

func reverseIPv4(dottedQuad string) (string, error) {
	octets := strings.Split(dottedQuad, ".")
	if len(octets) != 4 {
		return "", fmt.Errorf("%q is not an IPv4 dotted-quad", dottedQuad)
	}
	for _, o := range octets {
		n, err := strconv.Atoi(o)
		if err != nil || n < 0 || n > 255 {
			return "", fmt.Errorf("%q is not an IPv4 dotted-quad", dottedQuad)
		}
	}
	return fmt.Sprintf("%s.%s.%s.%s.in-addr.arpa", octets[3], octets[2], octets[1], octets[0]), nil
}

func printPacket(pkt *wire.Packet) {
	fmt.Printf(";; id=%d rcode=%s\n", pkt.Header.ID, rcodeName(pkt.Header.RCode))
	fmt.Printf(";; QUESTION: %d, ANSWER: %d, AUTHORITY: %d, ADDITIONAL: %d\n\n",
		len(pkt.Question), len(pkt.Answer), len(pkt.Authority), len(pkt.Additional))

	printSection(";; ANSWER SECTION:", pkt.Answer)
	printSection(";; AUTHORITY SECTION:", pkt.Authority)
	printSection(";; ADDITIONAL SECTION:", pkt.Additional)
}

func printSection(title string, rrs []wire.RR) {
	if len(rrs) == 0 {
		return
	}
	fmt.Println(title)
	for _, rr := range rrs {
		fmt.Printf("%s\t%d\tIN\t%s\t%s\n", rr.Name, rr.TTL, wire.TypeName(rr.Type), rr.RData)
	}
	fmt.Println()
}

func rcodeName(rcode uint8) string {
	switch rcode {
	case wire.RCodeNoError:
		return "NOERROR"
	case wire.RCodeFormErr:
		return "FORMERR"
	case wire.RCodeServFail:
		return "SERVFAIL"
	case wire.RCodeNXDomain:
		return "NXDOMAIN"
	case wire.RCodeNotImp:
		return "NOTIMP"
	case wire.RCodeRefused:
		return "REFUSED"
	default:
		return fmt.Sprintf("RCODE%d", rcode)
	}
}
