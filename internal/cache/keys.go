package cache

import "fmt"

// KeyGenerator produces namespaced cache keys for the indexer's cache
// consumers. The only current consumer is reverse-DNS resolution
// (see internal/dnsname), which is idempotent and safe to memoize.
type KeyGenerator struct {
	Prefix string
}

// NewKeyGenerator creates a new key generator with the given prefix.
func NewKeyGenerator(prefix string) *KeyGenerator {
	if prefix == "" {
		prefix = "idx"
	}
	return &KeyGenerator{Prefix: prefix}
}

// ReverseDNSKey addresses the cached reverse-DNS lookup result for an IPv4
// address in dotted-quad form.
func (kg *KeyGenerator) ReverseDNSKey(address string) string {
	return fmt.Sprintf("%s:rdns:%s", kg.Prefix, address)
}

// ReverseDNSPattern matches every cached reverse-DNS entry, for bulk
// invalidation.
func (kg *KeyGenerator) ReverseDNSPattern() string {
	return fmt.Sprintf("%s:rdns:*", kg.Prefix)
}
