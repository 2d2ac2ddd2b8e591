package dnscache

import (
	"context"
	"time"

	"github.com/miekg/dns"
)

// MiekgResolver is the production Resolver backed by github.com/miekg/dns,
// issuing plain UDP queries against a fixed list of recursive servers.
type MiekgResolver struct {
	Servers []string // "ip:port", e.g. "1.1.1.1:53"
	Client  *dns.Client
}

// NewMiekgResolver builds a resolver with a short UDP timeout, falling back
// through Servers in order on failure.
func NewMiekgResolver(servers ...string) *MiekgResolver {
	if len(servers) == 0 {
		servers = []string{"1.1.1.1:53", "8.8.8.8:53"}
	}
	return &MiekgResolver{
		Servers: servers,
		Client:  &dns.Client{Timeout: 2 * time.Second},
	}
}

func (r *MiekgResolver) Lookup(ctx context.Context, domain string, qtype uint16) ([]string, time.Duration, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), qtype)
	msg.RecursionDesired = true

	var lastErr error
	for _, server := range r.Servers {
		resp, _, err := r.Client.ExchangeContext(ctx, msg, server)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.Rcode != dns.RcodeSuccess {
			lastErr = &dns.Error{Err: dns.RcodeToString[resp.Rcode]}
			continue
		}
		var addrs []string
		var minTTL uint32 = ^uint32(0)
		for _, rr := range resp.Answer {
			switch v := rr.(type) {
			case *dns.A:
				addrs = append(addrs, v.A.String())
			case *dns.AAAA:
				addrs = append(addrs, v.AAAA.String())
			default:
				continue
			}
			if rr.Header().Ttl < minTTL {
				minTTL = rr.Header().Ttl
			}
		}
		if len(addrs) == 0 {
			lastErr = &dns.Error{Err: "no address records"}
			continue
		}
		return addrs, time.Duration(minTTL) * time.Second, nil
	}
	if lastErr == nil {
		lastErr = &dns.Error{Err: "no servers configured"}
	}
	return nil, 0, lastErr
}
