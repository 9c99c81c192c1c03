// Package psstring implements the immutable, GC-managed UTF-8 string type
// described in spec.md §3/§4.2, grounded on original_source/src/string.c
// and on the StringObj type in the teacher's internal/vmregister/value.go.
package psstring

import (
	"strconv"
	"strings"
	"unicode/utf8"
	"unsafe"

	"protoscript/internal/psgc"
	"protoscript/internal/psvalue"
)

func init() {
	psgc.RegisterTracer(psgc.TypeString, traceString)
	psgc.RegisterFinalizer(psgc.TypeString, finalizeString)
	psvalue.RegisterStringAccessor(psvalue.StringAccessor{
		Bytes:    bytesByPointer,
		ToNumber: toNumberByPointer,
	})
}

// bytesByPointer and toNumberByPointer let psvalue.ToBoolean/ToNumber/
// ToString reach a StringRef's content without psvalue importing this
// package (see psvalue.RegisterStringAccessor).
func bytesByPointer(ptr unsafe.Pointer) []byte {
	return (*String)(ptr).bytes
}

func toNumberByPointer(ptr unsafe.Pointer) float64 {
	return (*String)(ptr).ToNumber()
}

// numericIndexState tracks the memoized "is this string a valid array
// index" cache described in spec.md §3.
type numericIndexState uint8

const (
	numericUnknown numericIndexState = iota
	numericNotAnIndex
	numericIsIndex
)

// String is an immutable UTF-8 byte sequence with a precomputed glyph
// count, an optional glyph-offset index (present only for non-ASCII
// strings — pure-ASCII strings index directly by byte), and a memoized
// FNV-1a hash.
type String struct {
	psgc.Header

	bytes []byte

	glyphCount   int
	glyphOffsets []int // len == glyphCount, glyphOffsets[0] == 0; nil if ASCII

	hash uint32

	numericState numericIndexState
	numericValue int64
}

// GCHeader implements psgc.HeaderHolder.
func (s *String) GCHeader() *psgc.Header { return &s.Header }

func traceString(h *psgc.Header, gc *psgc.GC) {
	// Strings are leaves: they hold no references to other managed
	// allocations, so there is nothing further to mark (spec.md §4.6).
	_ = h
	_ = gc
}

func finalizeString(h *psgc.Header) {
	s := (*String)(unsafe.Pointer(h))
	s.bytes = nil
	s.glyphOffsets = nil
	// Clearing Magic makes a stale intern-cache entry recognizably dead
	// (see InternCache in intern.go) without the cache itself pinning the
	// string alive.
	h.Magic = 0
}

// fnv1a32 computes the 32-bit FNV-1a hash of b, per spec.md §4.2.
func fnv1a32(b []byte) uint32 {
	const (
		offsetBasis uint32 = 2166136261
		prime       uint32 = 16777619
	)
	h := offsetBasis
	for _, c := range b {
		h ^= uint32(c)
		h *= prime
	}
	return h
}

// New allocates a String from a UTF-8 byte slice. Returns an error if b is
// not well-formed UTF-8 (callers surface this as a RangeError, per
// spec.md §4.2); the returned error is nil on success.
func New(gc *psgc.GC, b []byte) (*String, error) {
	if !utf8.Valid(b) {
		return nil, errInvalidUTF8
	}
	buf := make([]byte, len(b))
	copy(buf, b)

	s := &String{bytes: buf}
	gc.Alloc(&s.Header, psgc.TypeString, unsafe.Sizeof(*s)+uintptr(len(buf)))
	s.indexGlyphs()
	s.hash = fnv1a32(s.bytes)
	return s, nil
}

// MustNew is New for literals the front end already knows are valid
// (e.g. Go string constants baked into the AST); it still validates the
// UTF-8 and panics if text is ill-formed.
func MustNew(gc *psgc.GC, text string) *String {
	s, err := New(gc, []byte(text))
	if err != nil {
		panic(err)
	}
	return s
}

var errInvalidUTF8 = &utf8Error{}

type utf8Error struct{}

func (*utf8Error) Error() string { return "invalid UTF-8 byte sequence" }

// isASCII reports whether b contains only 7-bit bytes.
func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}

func (s *String) indexGlyphs() {
	if isASCII(s.bytes) {
		s.glyphCount = len(s.bytes)
		s.glyphOffsets = nil
		return
	}
	offsets := make([]int, 0, len(s.bytes))
	for i := 0; i < len(s.bytes); {
		offsets = append(offsets, i)
		_, size := utf8.DecodeRune(s.bytes[i:])
		if size == 0 {
			size = 1
		}
		i += size
	}
	s.glyphOffsets = offsets
	s.glyphCount = len(offsets)
}

// Bytes returns the raw UTF-8 byte buffer. Callers must not mutate it.
func (s *String) Bytes() []byte { return s.bytes }

// Hash returns the memoized FNV-1a hash.
func (s *String) Hash() uint32 { return s.hash }

// Length returns the glyph (Unicode scalar value) count.
func (s *String) Length() int { return s.glyphCount }

// IsASCII reports whether this string indexes directly by byte offset.
func (s *String) IsASCII() bool { return s.glyphOffsets == nil }

func (s *String) byteOffset(glyph int) (start, end int, ok bool) {
	if glyph < 0 || glyph >= s.glyphCount {
		return 0, 0, false
	}
	if s.IsASCII() {
		return glyph, glyph + 1, true
	}
	start = s.glyphOffsets[glyph]
	if glyph+1 < len(s.glyphOffsets) {
		end = s.glyphOffsets[glyph+1]
	} else {
		end = len(s.bytes)
	}
	return start, end, true
}

// CharAt returns a fresh 1-glyph String, or the empty string if i is out
// of range (per spec.md §4.2 — never an error).
func (s *String) CharAt(gc *psgc.GC, i int) *String {
	start, end, ok := s.byteOffset(i)
	if !ok {
		return MustNew(gc, "")
	}
	out, _ := New(gc, s.bytes[start:end])
	return out
}

// CharCodeAt decodes the Unicode scalar value at glyph i, or -1 if i is
// out of range.
func (s *String) CharCodeAt(i int) int32 {
	start, end, ok := s.byteOffset(i)
	if !ok {
		return -1
	}
	r, _ := utf8.DecodeRune(s.bytes[start:end])
	return r
}

// Concat allocates a new String; it never mutates a or b.
func Concat(gc *psgc.GC, a, b *String) (*String, error) {
	buf := make([]byte, 0, len(a.bytes)+len(b.bytes))
	buf = append(buf, a.bytes...)
	buf = append(buf, b.bytes...)
	return New(gc, buf)
}

// Equal compares two Strings by hash first, then by byte content —
// mirroring ps_string_equals in string.c.
func Equal(a, b *String) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.hash != b.hash || len(a.bytes) != len(b.bytes) {
		return false
	}
	return string(a.bytes) == string(b.bytes)
}

// ToNumber follows the numeric grammar of spec.md §4.1: optional sign,
// Infinity/NaN, hex 0x…, decimal with optional fraction/exponent, and
// leading/trailing ASCII whitespace ignored. Any other residue is NaN.
func (s *String) ToNumber() float64 {
	text := strings.TrimFunc(string(s.bytes), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
	})
	if text == "" {
		return 0
	}
	neg := false
	body := text
	switch {
	case strings.HasPrefix(body, "+"):
		body = body[1:]
	case strings.HasPrefix(body, "-"):
		neg = true
		body = body[1:]
	}
	switch body {
	case "Infinity":
		if neg {
			return negInf
		}
		return posInf
	case "NaN":
		return nan
	}
	if body == "" || !(body[0] == '.' || (body[0] >= '0' && body[0] <= '9')) {
		return nan // rejects strconv's own spellings such as "inf" or "infinity"
	}
	if strings.HasPrefix(body, "0x") || strings.HasPrefix(body, "0X") {
		n, err := strconv.ParseUint(body[2:], 16, 64)
		if err != nil {
			return nan
		}
		v := float64(n)
		if neg {
			v = -v
		}
		return v
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return f // overflow: ParseFloat already returned ±Inf
		}
		return nan
	}
	return f
}

var (
	posInf = mustFloat("+Inf")
	negInf = mustFloat("-Inf")
	nan    = mustFloat("NaN")
)

func mustFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

// ToString renders a Go string copy of the content, for host-side
// diagnostics; it does not participate in the language's to_string
// coercion (that lives on psvalue, operating over Values).
func (s *String) ToString() string { return string(s.bytes) }

// Ref boxes s as a psvalue.Value StringRef.
func Ref(s *String) psvalue.Value {
	return psvalue.StringRefFromPointer(unsafe.Pointer(s))
}

// FromValue unboxes a StringRef Value back to its String, or nil if v is
// not a StringRef.
func FromValue(v psvalue.Value) *String {
	if !psvalue.IsStringRef(v) {
		return nil
	}
	return (*String)(psvalue.AsPointer(v))
}
