package ids

import (
	"testing"
	"time"
)

func TestNewIsSortableWithinMillisecond(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	prev := NewAt(at)
	for i := 0; i < 50; i++ {
		next := NewAt(at)
		if next <= prev {
			t.Fatalf("expected %s > %s", next, prev)
		}
		prev = next
	}
}

func TestValid(t *testing.T) {
	if !Valid(New()) {
		t.Fatal("fresh id should be valid")
	}
	for _, bad := range []string{"", "report-1", "01HZZZZZZZZZZZZZZZZZZZZZZZZ"} {
		if Valid(bad) {
			t.Fatalf("expected %q to be invalid", bad)
		}
	}
}
