package version_test

import (
	"testing"

	"vigil/internal/version"
)

func TestStringNeverEmpty(t *testing.T) {
	t.Parallel()

	if version.String() == "" {
		t.Fatal("build version is empty")
	}
}
