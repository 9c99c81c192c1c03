package psstring

import "protoscript/internal/psgc"

// internCacheSize is the open-addressed table size for short-string
// interning; a power of two so hash-modulo is a mask, per string.c.
const internCacheSize = 1024

// maxInternLen bounds which C-string literals are eligible for
// interning, per spec.md §4.2 ("from C-string (with interning for
// lengths <= 64)").
const maxInternLen = 64

// InternCache is an open-addressed, weak cache of short strings keyed by
// hash. A collision simply overwrites the existing slot — this cache
// never pins a String alive; once a cached String is swept (its Header's
// Magic cleared by finalizeString) a subsequent Intern call treats the
// slot as empty rather than dereferencing stale content.
type InternCache struct {
	slots [internCacheSize]*String
}

// NewInternCache returns an empty cache. One is typically owned per VM.
func NewInternCache() *InternCache {
	return &InternCache{}
}

func (c *InternCache) slot(hash uint32) int {
	return int(hash) & (internCacheSize - 1)
}

// Intern returns a String for text, reusing a live cached entry with a
// byte-identical, hash-matching value when one exists; otherwise it
// allocates via New and stores the result (if text qualifies for
// interning by length), overwriting whatever was in that slot.
func (c *InternCache) Intern(gc *psgc.GC, text string) (*String, error) {
	hash := fnv1a32([]byte(text))
	idx := c.slot(hash)

	if existing := c.slots[idx]; existing != nil && psgc.IsManaged(&existing.Header) {
		if existing.hash == hash && string(existing.bytes) == text {
			return existing, nil
		}
	}

	s, err := New(gc, []byte(text))
	if err != nil {
		return nil, err
	}
	if len(text) <= maxInternLen {
		c.slots[idx] = s
	}
	return s, nil
}

// FromCString interns c-string-like literals up to maxInternLen bytes;
// longer literals are allocated directly without touching the cache,
// matching ps_string_new_cstring's behavior in string.c.
func FromCString(gc *psgc.GC, cache *InternCache, text string) (*String, error) {
	if len(text) > maxInternLen || cache == nil {
		return New(gc, []byte(text))
	}
	return cache.Intern(gc, text)
}
