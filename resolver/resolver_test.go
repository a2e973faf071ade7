package resolver

import (
	"fmt"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func srvRecord(t *testing.T, target string, port uint16) dns.RR {
	t.Helper()
	rr, err := dns.NewRR(fmt.Sprintf("_https._tcp.svc.internal. 60 IN SRV 10 10 %d %s",
		port, dns.Fqdn(target)))
	require.NoError(t, err)
	return rr
}

func TestParseSRVAnswers(t *testing.T) {
	answers := []dns.RR{
		srvRecord(t, "a.svc.internal", 8443),
		srvRecord(t, "b.svc.internal", 9443),
	}

	endpoints := ParseSRVAnswers(answers)
	require.Len(t, endpoints, 2)
	assert.Equal(t, "a.svc.internal.:8443", endpoints[0].Addr())
	assert.Equal(t, "b.svc.internal.:9443", endpoints[1].Addr())
}

func TestParseSRVAnswersSkipsOtherTypes(t *testing.T) {
	a, err := dns.NewRR("svc.internal. 60 IN A 10.0.0.1")
	require.NoError(t, err)

	endpoints := ParseSRVAnswers([]dns.RR{a})
	assert.Empty(t, endpoints)
}

func TestNewDefaultsToStubResolver(t *testing.T) {
	r := New("")
	assert.Equal(t, DefaultResolverAddr, r.serverAddr)
}
