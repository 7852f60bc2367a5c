package memory

import (
	"bytes"
	"testing"
	"time"
)

func TestRoundTripAndDelete(t *testing.T) {
	c := New(time.Minute, "")

	if _, ok := c.Get("missing"); ok {
		t.Fatal("hit on empty cache")
	}
	c.Set("k", []byte("v"), time.Minute)
	got, ok := c.Get("k")
	if !ok || !bytes.Equal(got, []byte("v")) {
		t.Fatalf("got=%q ok=%v", got, ok)
	}
	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry survived delete")
	}
}

func TestTTLExpiry(t *testing.T) {
	c := New(time.Minute, "")
	c.Set("k", []byte("v"), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry outlived its ttl")
	}
}

// Dos caches con prefijos distintos sobre claves iguales no se pisan:
// el prefijo es el namespace.
func TestPrefixIsolation(t *testing.T) {
	a := New(time.Minute, "a:")
	b := New(time.Minute, "b:")

	a.Set("k", []byte("from-a"), time.Minute)
	if _, ok := b.Get("k"); ok {
		t.Fatal("prefix leak across namespaces")
	}

	// Mismo backing con prefijo: la clave cruda no existe sin prefijo.
	p := New(time.Minute, "p:").(*Mem)
	p.Set("k", []byte("v"), time.Minute)
	if _, ok := p.c.Get("k"); ok {
		t.Fatal("raw key stored without prefix")
	}
	if _, ok := p.c.Get("p:k"); !ok {
		t.Fatal("prefixed key missing")
	}
}
