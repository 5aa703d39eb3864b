package version

import (
	"strings"
	"testing"
)

func TestFallbacks(t *testing.T) {
	if Version == "" {
		t.Fatal("Version not populated")
	}
	if Commit == "" {
		t.Fatal("Commit not populated")
	}
}

func TestString(t *testing.T) {
	s := String("player-cli")
	if !strings.HasPrefix(s, "player-cli "+Version) {
		t.Errorf("String() = %q", s)
	}
	if !strings.Contains(s, Commit) {
		t.Errorf("String() = %q, missing commit", s)
	}
	if Full() != Version+" (commit: "+Commit+")" {
		t.Errorf("Full() = %q", Full())
	}
}

func TestFill(t *testing.T) {
	oldV, oldC := Version, Commit
	defer func() { Version, Commit = oldV, oldC }()

	tests := []struct {
		name        string
		in          vcs
		wantVersion string
		wantCommit  string
	}{
		{"empty", vcs{}, "", ""},
		{"long revision", vcs{revision: "0123456789abcdef"}, "", "0123456"},
		{"dirty", vcs{revision: "abc", modified: true}, "", "abc-dirty"},
		{"time", vcs{time: "2026-10-14T12:00:00Z"}, "dev-20261014", ""},
		{"bad time", vcs{time: "yesterday"}, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Version, Commit = "", ""
			fill(tt.in)
			if Version != tt.wantVersion {
				t.Errorf("Version = %q, want %q", Version, tt.wantVersion)
			}
			if Commit != tt.wantCommit {
				t.Errorf("Commit = %q, want %q", Commit, tt.wantCommit)
			}
		})
	}

	Version, Commit = "v1.0.0", "fixed"
	fill(vcs{revision: "0123456789", time: "2026-10-14T12:00:00Z"})
	if Version != "v1.0.0" || Commit != "fixed" {
		t.Errorf("ldflags values overwritten: %s %s", Version, Commit)
	}
}
