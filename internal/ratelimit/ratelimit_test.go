package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterAllowsBurst(t *testing.T) {
	l := NewLimiter(10, 5)

	for i := 0; i < 5; i++ {
		if !l.Allow() {
			t.Fatalf("Request %d within burst should be allowed", i)
		}
	}

	if l.Allow() {
		t.Error("Request beyond burst should be denied")
	}
}

func TestLimiterRefills(t *testing.T) {
	l := NewLimiter(100, 1)

	if !l.Allow() {
		t.Fatal("First request should be allowed")
	}
	if l.Allow() {
		t.Fatal("Bucket should be empty")
	}

	time.Sleep(50 * time.Millisecond)

	if !l.Allow() {
		t.Error("Bucket should have refilled")
	}
}
