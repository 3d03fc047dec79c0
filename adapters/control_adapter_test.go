package adapters_test

import (
	"testing"
	"time"

	"github.com/momentics/htcore/adapters"
)

func TestControlAdapterBasic(t *testing.T) {
	ctrl := adapters.NewControlAdapter()
	cfg := ctrl.GetConfig()
	if len(cfg) != 0 {
		t.Error("Expected empty config on init")
	}
	err := ctrl.SetConfig(map[string]any{"k": 1})
	if err != nil {
		t.Fatal(err)
	}
	stats := ctrl.Stats()
	if stats["k"] != 1 {
		t.Error("SetConfig did not apply")
	}
	called := make(chan struct{}, 2)
	ctrl.OnReload(func() {
		select {
		case called <- struct{}{}:
		default:
		}
	})
	ctrl.SetConfig(map[string]any{"x": 2})
	// Reload hooks run on their own goroutines; allow the hook time to run.
	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Error("Reload hook not called")
	}
}
