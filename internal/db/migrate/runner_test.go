package migrate

import (
	"os"
	"testing"
)

func TestParseDirection(t *testing.T) {
	testCases := []struct {
		in      string
		want    Direction
		wantErr bool
	}{
		{"up", Up, false},
		{"down", Down, false},
		{"", "", true},
		{"UP", "", true},
		{"sideways", "", true},
	}
	for _, tc := range testCases {
		got, err := ParseDirection(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseDirection(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
		}
		if got != tc.want {
			t.Errorf("ParseDirection(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRun_EmptyDSN(t *testing.T) {
	for _, dsn := range []string{"", "   "} {
		err := Run(dsn, Up)
		if err == nil || err.Error() != "DATABASE_URL is not set" {
			t.Errorf("Run(%q) err = %v, want DATABASE_URL is not set", dsn, err)
		}
	}
}

func TestRun_InvalidDirection(t *testing.T) {
	if err := Run("postgres://localhost/test", Direction("left")); err == nil {
		t.Error("Run with invalid direction should return error")
	}
}

func TestRun_InvalidDSN(t *testing.T) {
	for _, dsn := range []string{"invalid-dsn", "://localhost/test", "postgres://localhost with spaces/test"} {
		if err := Run(dsn, Up); err == nil {
			t.Errorf("Run with invalid DSN %q should return error", dsn)
		}
	}
}

func TestVersion_EmptyDSN(t *testing.T) {
	if _, _, _, err := Version(""); err == nil {
		t.Error("Version with empty DSN should return error")
	}
}

func TestRun_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	if err := Run(dsn, Up); err != nil {
		t.Fatalf("Run up: %v", err)
	}
	if err := Run(dsn, Up); err != nil {
		t.Fatalf("second Run up should be a no-op: %v", err)
	}
	v, dirty, ok, err := Version(dsn)
	if err != nil || !ok || dirty || v != 1 {
		t.Errorf("Version = %d dirty=%v ok=%v err=%v, want 1 clean", v, dirty, ok, err)
	}
}
