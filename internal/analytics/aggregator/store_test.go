package aggregator

import "testing"

func TestLatestQuery(t *testing.T) {
	query, args, err := latestQuery(1)
	if err != nil {
		t.Fatal(err)
	}
	want := "SELECT data FROM analytics_snapshots ORDER BY captured_at DESC LIMIT 1"
	if query != want {
		t.Errorf("query = %q, want %q", query, want)
	}
	if len(args) != 0 {
		t.Errorf("args = %v", args)
	}
}
