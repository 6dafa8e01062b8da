//go:build windows

package filesystem

import (
	"errors"
	"testing"

	"drumcoder/pkg/contract"
)

func TestMapPathAbsoluteWindows(t *testing.T) {
	w, _ := New(&Options{OutputDir: t.TempDir()})
	for _, id := range []string{`C:\abs`, `C:rel`} {
		if _, err := w.mapPath(contract.ArtifactID(id)); !errors.Is(err, contract.ErrPathInvalid) {
			t.Fatalf("id %s should be invalid, got %v", id, err)
		}
	}
}
