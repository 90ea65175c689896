package cache

import (
	"testing"
	"time"
)

func TestSetGet(t *testing.T) {
	c := New[string]()
	c.Set("a", "hello", time.Minute)

	got, ok := c.Get("a")
	if !ok {
		t.Fatal("expected hit")
	}
	if got != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
}

func TestGetMissing(t *testing.T) {
	c := New[int]()
	if _, ok := c.Get("nope"); ok {
		t.Error("expected miss for absent key")
	}
}

func TestExpiry(t *testing.T) {
	c := New[string]()
	c.Set("a", "hello", -time.Second)

	if _, ok := c.Get("a"); ok {
		t.Error("expected expired entry to miss")
	}
}

func TestDelete(t *testing.T) {
	c := New[string]()
	c.Set("a", "hello", time.Minute)
	c.Delete("a")

	if _, ok := c.Get("a"); ok {
		t.Error("expected miss after delete")
	}
}

func TestClear(t *testing.T) {
	c := New[string]()
	c.Set("a", "1", time.Minute)
	c.Set("b", "2", time.Minute)
	c.Clear()

	if _, ok := c.Get("a"); ok {
		t.Error("expected miss after clear")
	}
	if _, ok := c.Get("b"); ok {
		t.Error("expected miss after clear")
	}
}

func TestInvalidatePrefix(t *testing.T) {
	c := New[string]()
	c.Set("book:1", "x", time.Minute)
	c.Set("book:2", "y", time.Minute)
	c.Set("user:1", "z", time.Minute)

	c.Invalidate("book:")

	if _, ok := c.Get("book:1"); ok {
		t.Error("expected book:1 to be invalidated")
	}
	if _, ok := c.Get("book:2"); ok {
		t.Error("expected book:2 to be invalidated")
	}
	if _, ok := c.Get("user:1"); !ok {
		t.Error("expected user:1 to survive")
	}
}
