//go:build integration
// +build integration

package store

import (
	"context"
	"testing"
	"time"
)

// TestMemcachedStore_GetSet_Integration verifies that MemcachedStore stores and
// retrieves values when a memcached server is available.
func TestMemcachedStore_GetSet_Integration(t *testing.T) {
	s := NewMemcachedStore("localhost:11211", 500*time.Millisecond, 2)
	defer s.Close()

	ctx := context.Background()
	if err := s.Set(ctx, "lastWeather", `{"name":"Seattle"}`); err != nil {
		t.Skipf("Set failed (memcached may not be running): %v", err)
	}

	got, ok, err := s.Get(ctx, "lastWeather")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got != `{"name":"Seattle"}` {
		t.Errorf("Get() = %q", got)
	}
}

// TestMemcachedStore_Get_Miss_Integration verifies ok=false for a missing key.
func TestMemcachedStore_Get_Miss_Integration(t *testing.T) {
	s := NewMemcachedStore("localhost:11211", 500*time.Millisecond, 2)
	defer s.Close()

	_, ok, err := s.Get(context.Background(), "nonexistent")
	if err != nil {
		t.Skipf("Get failed (memcached may not be running): %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for miss")
	}
}
