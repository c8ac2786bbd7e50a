package pagecache

import (
	"bytes"
	"strings"
	"testing"
)

func TestCacheSetGetInvalidate(t *testing.T) {
	cache := New(Config{})

	if _, ok := cache.Get("page"); ok {
		t.Fatalf("expected miss on empty cache")
	}

	cache.Set("page", []byte("<html>one</html>"))
	value, ok := cache.Get("page")
	if !ok || string(value) != "<html>one</html>" {
		t.Fatalf("unexpected cached value %q (ok=%v)", value, ok)
	}

	cache.Invalidate()
	if _, ok := cache.Get("page"); ok {
		t.Fatalf("expected miss after invalidate")
	}
}

func TestCacheStoresLargePages(t *testing.T) {
	cache := New(Config{MaxBytes: 1024 * 1024})
	page := []byte(strings.Repeat("<a>link</a>", 20000))

	cache.Set("large", page)
	value, ok := cache.Get("large")
	if !ok || !bytes.Equal(value, page) {
		t.Fatalf("expected large page round trip, got %d bytes (ok=%v)", len(value), ok)
	}
}

func TestCacheIgnoresEmptyPagesAndNilReceiver(t *testing.T) {
	cache := New(Config{})
	cache.Set("empty", nil)
	if _, ok := cache.Get("empty"); ok {
		t.Fatalf("expected empty page to be ignored")
	}

	var missing *Cache
	missing.Set("page", []byte("x"))
	missing.Invalidate()
	if _, ok := missing.Get("page"); ok {
		t.Fatalf("expected nil cache to miss")
	}
}
