package pool

import "testing"

func TestBufferIsReset(t *testing.T) {
	b := GetBuffer()
	b.WriteString("leftover")
	PutBuffer(b)

	b = GetBuffer()
	if b.Len() != 0 {
		t.Fatalf("Expected empty buffer, got %q", b.String())
	}
	PutBuffer(b)
}

func TestStringsAreReset(t *testing.T) {
	s := GetStrings()
	*s = append(*s, "a", "b")
	PutStrings(s)

	s = GetStrings()
	if len(*s) != 0 {
		t.Fatalf("Expected empty slice, got %v", *s)
	}
	PutStrings(s)
}

func TestOversizedBufferIsDropped(t *testing.T) {
	b := GetBuffer()
	b.Grow(maxPooledBuffer + 1)
	PutBuffer(b) // must not panic; the buffer is simply not pooled
}
