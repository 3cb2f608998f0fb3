// Command dnsserver runs one of this system's server roles, selected by a
// single mode argument (§6.2): "local" is the recursive resolver listening
// on TCP; "root" and "s1" through "s4" are authoritative servers, each
// bound to its own loopback IPv4 address and backed by its own zone file.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dnsscience/dnscore/internal/authoritative"
	"github.com/dnsscience/dnscore/internal/resolver"
	"github.com/dnsscience/dnscore/internal/store"
	"github.com/dnsscience/dnscore/internal/transport"
	"github.com/dnsscience/dnscore/internal/wire"
)

// authoritativeRoles maps each authoritative mode to the loopback address
// it binds; the zone file it serves defaults to <zones>/<mode>.dnszone.
// The local recursive resolver
// lives at 127.0.0.2 and seeds its iterative walks at the root's address.
var authoritativeRoles = map[string]string{
	"root": "127.0.0.7:53",
	"s1":   "127.0.0.3:53",
	"s2":   "127.0.0.4:53",
	"s3":   "127.0.0.5:53",
	"s4":   "127.0.0.6:53",
}

const (
	defaultLocalAddr = "127.0.0.2:53"
	defaultRootAddr  = "127.0.0.7:53"
)

func printBanner(role string) {
	fmt.Println("+----------------------------------------------------------+")
	fmt.Printf("|  dnscore %-49s|\n", role)
	fmt.Println("+----------------------------------------------------------+")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	mode := os.Args[1]
	fs := flag.NewFlagSet(mode, flag.ExitOnError)

	if mode == "local" {
		listenAddr := fs.String("listen", defaultLocalAddr, "TCP listen address for the stub-facing resolver")
		rootAddr := fs.String("root", defaultRootAddr, "UDP address of the root nameserver seeding iterative walks")
		maxIter := fs.Int("max-iterations", resolver.DefaultMaxIterations, "maximum delegation hops per query")
		qps := fs.Float64("qps", 0, "pace outgoing upstream queries to this many per second (0 disables pacing)")
		fs.Parse(os.Args[2:])

		runLocal(*listenAddr, *rootAddr, *maxIter, *qps)
		return
	}

	roleAddr, ok := authoritativeRoles[mode]
	if !ok {
		usage()
		os.Exit(1)
	}

	addr := fs.String("addr", roleAddr, "UDP address this authoritative server listens on")
	zoneDir := fs.String("zones", "zones", "directory holding .dnszone files")
	zoneFile := fs.String("zone", "", "zone file path (default <zones>/<mode>.dnszone)")
	fs.Parse(os.Args[2:])

	path := *zoneFile
	if path == "" {
		path = filepath.Join(*zoneDir, mode+".dnszone")
	}
	runAuthoritative(mode, *addr, path)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: dnsserver local [-listen addr] [-root addr] [-max-iterations n] [-qps n]")
	fmt.Fprintln(os.Stderr, "       dnsserver root|s1|s2|s3|s4 [-addr addr] [-zones dir] [-zone path]")
}

func runLocal(listenAddr, rootAddr string, maxIterations int, qps float64) {
	printBanner("local recursive resolver")
	fmt.Printf("listen (TCP): %s\n", listenAddr)
	fmt.Printf("root:         %s\n", rootAddr)
	fmt.Printf("max hops:     %d\n", maxIterations)
	fmt.Println()

	cache := store.NewCache()
	r := resolver.New(cache, resolver.Config{
		RootAddr:         rootAddr,
		MaxIterations:    maxIterations,
		QueriesPerSecond: qps,
	})

	srv, err := transport.ListenTCP(listenAddr, func(req []byte) []byte {
		pkt, err := wire.Decode(req)
		if err != nil {
			return formErrReply(req)
		}
		resp := r.Resolve(pkt)
		raw, err := wire.Encode(resp)
		if err != nil {
			return nil
		}
		return raw
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "dnsserver: %v\n", err)
		os.Exit(1)
	}

	runUntilSignal(func(stop <-chan struct{}) { srv.Serve(stop) }, srv.Close)
}

func runAuthoritative(role, addr, zoneFile string) {
	printBanner("authoritative server (" + role + ")")
	fmt.Printf("listen (UDP): %s\n", addr)
	fmt.Printf("zone file:    %s\n", zoneFile)

	zone, err := store.LoadZoneFile(zoneFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dnsserver: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("zone:         %s (%d owner names)\n\n", zone.Name, len(zone.Records))

	srv, err := transport.ListenUDP(addr, func(req []byte, _ *net.UDPAddr) []byte {
		pkt, err := wire.Decode(req)
		if err != nil {
			return formErrReply(req)
		}
		resp := authoritative.Respond(zone, pkt)
		raw, err := wire.Encode(resp)
		if err != nil {
			return nil
		}
		return raw
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "dnsserver: %v\n", err)
		os.Exit(1)
	}

	runUntilSignal(func(stop <-chan struct{}) { srv.Serve(stop) }, srv.Close)
}

// formErrReply attempts to echo back at least the transaction id from an
// undecodable message, with RCODE=FORMERR and no sections (§7).
func formErrReply(req []byte) []byte {
	if len(req) < 2 {
		return nil
	}
	resp := &wire.Packet{
		Header: wire.Header{
			ID:    uint16(req[0])<<8 | uint16(req[1]),
			QR:    true,
			RCode: wire.RCodeFormErr,
		},
	}
	raw, err := wire.Encode(resp)
	if err != nil {
		return nil
	}
	return raw
}

func runUntilSignal(serve func(stop <-chan struct{}), closeFn func() error) {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		serve(stop)
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nshutting down...")
	close(stop)
	_ = closeFn()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}
