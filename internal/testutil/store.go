package testutil

import (
	"testing"

	"nova.dev/core/core"
)

// OpenStore opens a bbolt-backed core.Store rooted in a fresh sandbox
// directory, closing it and removing the sandbox automatically when t
// finishes.
func OpenStore(t *testing.T) *core.Store {
	t.Helper()
	sb, err := NewSandbox()
	if err != nil {
		t.Fatalf("new sandbox: %v", err)
	}
	store, err := core.OpenStore(sb.Path("nova.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
		_ = sb.Cleanup()
	})
	return store
}
