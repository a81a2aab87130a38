package logger

import "testing"

func TestTruncateForLog(t *testing.T) {
	cases := []struct {
		in    string
		limit int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly-ten", 11, "exactly-ten"},
		{"this is a longer body", 7, "this is..."},
		{"  padded  ", 10, "padded"},
		{"anything", 0, ""},
	}

	for _, tc := range cases {
		if got := TruncateForLog(tc.in, tc.limit); got != tc.want {
			t.Fatalf("TruncateForLog(%q, %d) = %q, want %q", tc.in, tc.limit, got, tc.want)
		}
	}
}

func TestWithComponentNilSafe(t *testing.T) {
	logger := WithComponent(nil, "drift")
	if logger == nil {
		t.Fatalf("expected a usable logger")
	}

	// empty component returns the logger unchanged
	base := WithComponent(nil, "")
	if base == nil {
		t.Fatalf("expected a usable logger for empty component")
	}
}
