//go:build !unit
// +build !unit

package version

import (
	"fmt"
	"strings"
	"testing"
)

// TestFlagEmpty fails if version.Flag is not empty. It enforces an empty flag
// on release branches.
func TestFlagEmpty(t *testing.T) {
	if len(Flag) > 0 {
		t.Skipf("Version Flag is not empty: %s", Flag)
	}
}

func TestString(t *testing.T) {
	if !strings.HasPrefix(String(), "overlay-"+Version) {
		t.Fatalf("version string should start with overlay-%s, got %s", Version, String())
	}
}

func TestVersionNumber(t *testing.T) {
	want := fmt.Sprintf("%d.%d.%d", Major, Minor, Patch)
	if !strings.HasPrefix(Version, want) {
		t.Fatalf("Version should start with %s, got %s", want, Version)
	}
}
