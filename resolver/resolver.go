// Package resolver looks up service endpoints through DNS SRV records.
// Deployments that front their services with internal service discovery
// publish SRV records; the mTLS client resolves the target through the
// configured resolver instead of relying on ambient host configuration.
package resolver

import (
	"fmt"
	"net"
	"strconv"

	"github.com/miekg/dns"
)

// DefaultResolverAddr is the systemd-resolved stub listener.
const DefaultResolverAddr = "127.0.0.53:53"

// Endpoint is one resolved service instance.
type Endpoint struct {
	// Host is the SRV target name.
	Host string

	// Port is the SRV port.
	Port uint16
}

// Addr returns the host:port form usable by a dialer.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port)))
}

// ServiceResolver resolves SRV records against a fixed DNS server.
type ServiceResolver struct {
	client     *dns.Client
	serverAddr string
}

// New creates a resolver querying serverAddr; empty means the local stub
// resolver.
func New(serverAddr string) *ServiceResolver {
	if serverAddr == "" {
		serverAddr = DefaultResolverAddr
	}
	return &ServiceResolver{
		client:     new(dns.Client),
		serverAddr: serverAddr,
	}
}

// Resolve queries the SRV records of domain and returns the published
// endpoints. The domain must be fully qualified; a missing trailing dot is
// added.
func (r *ServiceResolver) Resolve(domain string) ([]Endpoint, error) {
	msg := new(dns.Msg)
	msg.Id = dns.Id()
	msg.RecursionDesired = true
	msg.Question = []dns.Question{{
		Name:   dns.Fqdn(domain),
		Qtype:  dns.TypeSRV,
		Qclass: dns.ClassINET,
	}}

	in, _, err := r.client.Exchange(msg, r.serverAddr)
	if err != nil {
		return nil, fmt.Errorf("SRV lookup for %s failed: %w", domain, err)
	}

	endpoints := ParseSRVAnswers(in.Answer)
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no SRV records for %s", domain)
	}
	return endpoints, nil
}

// ParseSRVAnswers extracts endpoints from a DNS answer section, keeping the
// record order.
func ParseSRVAnswers(answers []dns.RR) []Endpoint {
	endpoints := make([]Endpoint, 0, len(answers))
	for _, answer := range answers {
		if srv, ok := answer.(*dns.SRV); ok {
			endpoints = append(endpoints, Endpoint{
				Host: srv.Target,
				Port: srv.Port,
			})
		}
	}
	return endpoints
}
