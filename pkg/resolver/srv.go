package resolver

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/miekg/dns"

	"github.com/cuemby/warren-bolt/pkg/neo4jerr"
)

// DefaultBoltPort is substituted when a resolved address carries no port
// (spec.md §6, "port defaults to 7687").
const DefaultBoltPort = 7687

// SRVExpander resolves a single `neo4j://` seed hostname into the cluster's
// advertised router addresses via a DNS SRV lookup (`_bolt._tcp.<host>`),
// the discovery mechanism Neo4j Aura and other managed deployments use so a
// driver never hardcodes individual core members. Grounded on the teacher's
// `pkg/dns` package, which also builds request/response handling on top of
// `miekg/dns`, generalized here from serving DNS to querying it.
type SRVExpander struct {
	// Client performs the actual exchange; nil uses a fresh dns.Client per
	// call with a conservative timeout.
	Client *dns.Client
	// Nameserver is the resolver to query, host:port form. Empty uses the
	// system resolver configuration from /etc/resolv.conf.
	Nameserver string
}

func (s SRVExpander) Resolve(ctx context.Context, address string) ([]string, error) {
	host, port := splitHostPort(address)
	client := s.Client
	if client == nil {
		client = &dns.Client{}
	}
	nameserver := s.Nameserver
	if nameserver == "" {
		ns, err := systemNameserver()
		if err != nil {
			return nil, neo4jerr.InvalidConfig(fmt.Sprintf("resolver: no nameserver configured and /etc/resolv.conf unreadable: %v", err))
		}
		nameserver = ns
	}

	query := new(dns.Msg)
	query.SetQuestion(dns.Fqdn("_bolt._tcp."+host), dns.TypeSRV)

	reply, _, err := client.ExchangeContext(ctx, query, nameserver)
	if err != nil {
		return nil, neo4jerr.WrapConnect(fmt.Errorf("resolver: SRV lookup for %s: %w", host, err))
	}
	if reply.Rcode != dns.RcodeSuccess {
		return nil, neo4jerr.InvalidConfig(fmt.Sprintf("resolver: SRV lookup for %s: rcode %d", host, reply.Rcode))
	}

	var out []string
	for _, rr := range reply.Answer {
		srv, ok := rr.(*dns.SRV)
		if !ok {
			continue
		}
		target := dns.Fqdn(srv.Target)
		out = append(out, net.JoinHostPort(trimTrailingDot(target), strconv.Itoa(int(srv.Port))))
	}
	if len(out) == 0 {
		// No SRV records: fall back to the host as-is, honoring whatever
		// port the caller supplied (or the Bolt default).
		return []string{net.JoinHostPort(host, strconv.Itoa(port))}, nil
	}
	return out, nil
}

func splitHostPort(address string) (string, int) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return address, DefaultBoltPort
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, DefaultBoltPort
	}
	return host, port
}

func trimTrailingDot(s string) string {
	if len(s) > 0 && s[len(s)-1] == '.' {
		return s[:len(s)-1]
	}
	return s
}

func systemNameserver() (string, error) {
	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil {
		return "", err
	}
	if len(conf.Servers) == 0 {
		return "", fmt.Errorf("no nameservers in resolv.conf")
	}
	return net.JoinHostPort(conf.Servers[0], conf.Port), nil
}
