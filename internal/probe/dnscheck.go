package probe

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"
)

type DNSClass string

const (
	DNSResolves    DNSClass = "RESOLVES"
	DNSNoAddress   DNSClass = "NO_A_RECORD" // zone exists, host has no A/AAAA
	DNSNXDomain    DNSClass = "NXDOMAIN"
	DNSUnreachable DNSClass = "SERVFAIL_or_TIMEOUT"
	DNSInvalidName DNSClass = "INVALID_NAME"
)

// DNSStatus explains why a host could not be reached. It is diagnostic only
// and never changes a check result.
type DNSStatus struct {
	Domain        string
	Class         DNSClass
	IPs           []net.IP
	CNAME         string
	Nameservers   []string
	ResolverError string
}

var dnsTimeout = 3 * time.Second

// DNSDiagnoser resolves the host of a URL.
type DNSDiagnoser interface {
	Diagnose(ctx context.Context, rawURL string) DNSStatus
}

// lookuper is the part of *net.Resolver we use.
type lookuper interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
	LookupCNAME(ctx context.Context, host string) (string, error)
	LookupNS(ctx context.Context, name string) ([]*net.NS, error)
}

// Resolver diagnoses with R, or the OS resolver when R is nil.
type Resolver struct {
	R lookuper
}

func (r Resolver) Diagnose(ctx context.Context, rawURL string) DNSStatus {
	var l lookuper = net.DefaultResolver
	if r.R != nil {
		l = r.R
	}
	return diagnose(ctx, l, HostOf(rawURL))
}

func diagnose(ctx context.Context, l lookuper, host string) DNSStatus {
	s := DNSStatus{Domain: strings.TrimSpace(host)}
	if s.Domain == "" || (strings.ContainsAny(s.Domain, "/: ") && net.ParseIP(s.Domain) == nil) {
		s.Class = DNSInvalidName
		return s
	}
	if ip := net.ParseIP(s.Domain); ip != nil {
		s.IPs = []net.IP{ip}
		s.Class = DNSResolves
		return s
	}

	ctx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()

	ips, ipErr := l.LookupIP(ctx, "ip", s.Domain)
	s.IPs = ips
	if ipErr != nil {
		s.ResolverError = ipErr.Error()
	}
	if cname, err := l.LookupCNAME(ctx, s.Domain); err == nil && !strings.EqualFold(cname, s.Domain+".") {
		s.CNAME = strings.TrimSuffix(cname, ".")
	}
	if ns, err := l.LookupNS(ctx, s.Domain); err == nil {
		for _, n := range ns {
			s.Nameservers = append(s.Nameservers, strings.TrimSuffix(n.Host, "."))
		}
	}
	s.Class = dnsClass(len(s.IPs) > 0, len(s.Nameservers) > 0, ipErr)
	return s
}

// dnsClass picks the most specific explanation. A name that is served by
// nameservers but has no address is NO_A_RECORD even when the address lookup
// itself reported not-found.
func dnsClass(hasAddr, hasNS bool, lookupErr error) DNSClass {
	switch {
	case hasAddr:
		return DNSResolves
	case hasNS:
		return DNSNoAddress
	}
	var de *net.DNSError
	if errors.As(lookupErr, &de) && (de.IsTemporary || de.IsTimeout) {
		return DNSUnreachable
	}
	if lookupErr != nil && !errors.As(lookupErr, &de) {
		return DNSUnreachable
	}
	return DNSNXDomain
}

// HostOf pulls the hostname from a URL string.
func HostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}
