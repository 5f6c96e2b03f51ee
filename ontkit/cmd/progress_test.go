package cmd

import "testing"

func TestNewProgressDisabled(t *testing.T) {
	for _, tc := range []struct {
		total   int
		enabled bool
	}{
		{total: 5, enabled: false},
		{total: 0, enabled: true},
		{total: -1, enabled: true},
	} {
		p := newProgress(tc.total, "merge", tc.enabled)
		if p.bar != nil {
			t.Fatalf("total=%d enabled=%v should not draw a bar", tc.total, tc.enabled)
		}
		p.increment()
		p.finish()
	}
	if p := newProgress(2, "merge", true); p.bar == nil {
		t.Fatalf("expected a bar for a positive total")
	}
}
