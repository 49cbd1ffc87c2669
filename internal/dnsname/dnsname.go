// Package dnsname implements reverse-DNS naming for FTP servers: resolve an
// address to a PTR hostname, strip a configured suffix, and fall back to the
// dotted-quad itself when resolution fails or yields nothing usable.
// Resolution is memoized through the optional Badger-backed cache (§C13).
package dnsname

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/lanftp/indexer/internal/cache"
	"github.com/lanftp/indexer/internal/logging"
)

// DefaultTTL is how long a resolved (or failed) lookup is cached.
const DefaultTTL = 24 * time.Hour

// Resolver resolves addresses to display names, stripping stripSuffix from
// the resolved hostname when present.
type Resolver struct {
	stripSuffix string
	timeout     time.Duration
	cache       cache.Cache
	keys        *cache.KeyGenerator
	ttl         time.Duration
}

// NewResolver builds a Resolver. cache may be nil, in which case every
// lookup hits the network directly with no memoization.
func NewResolver(stripSuffix string, timeout time.Duration, c cache.Cache) *Resolver {
	return &Resolver{
		stripSuffix: stripSuffix,
		timeout:     timeout,
		cache:       c,
		keys:        cache.NewKeyGenerator("dnsname"),
		ttl:         DefaultTTL,
	}
}

// Name resolves address to a display name: the PTR hostname with
// stripSuffix removed, or address itself if resolution fails, yields no
// names, or the stripped name would be empty.
func (r *Resolver) Name(ctx context.Context, address string) string {
	if r.cache != nil {
		key := r.keys.ReverseDNSKey(address)
		if cached, err := r.cache.Get(ctx, key); err == nil && len(cached) > 0 {
			return string(cached)
		}
	}

	name := r.resolve(ctx, address)

	if r.cache != nil {
		key := r.keys.ReverseDNSKey(address)
		if err := r.cache.Set(ctx, key, []byte(name), r.ttl); err != nil {
			logging.Warn("caching reverse dns result failed", logging.IP(address), logging.Err(err))
		}
	}

	return name
}

func (r *Resolver) resolve(ctx context.Context, address string) string {
	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	names, err := net.DefaultResolver.LookupAddr(lookupCtx, address)
	if err != nil || len(names) == 0 {
		return address
	}

	hostname := strings.TrimSuffix(names[0], ".")
	hostname = r.stripSuffixFrom(hostname)
	if hostname == "" {
		return address
	}
	return hostname
}

func (r *Resolver) stripSuffixFrom(hostname string) string {
	if r.stripSuffix == "" {
		return hostname
	}
	stripped := strings.TrimSuffix(hostname, r.stripSuffix)
	stripped = strings.TrimSuffix(stripped, ".")
	return stripped
}
