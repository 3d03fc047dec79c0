package connctx

import "testing"

func TestContext_ResetRequestScopeKeepsPropagated(t *testing.T) {
	c := NewContext()
	c.Set("conn.state", "keep-me", true)
	c.Set("request.id", 42, false)

	c.ResetRequestScope()

	if _, ok := c.Get("request.id"); ok {
		t.Fatal("expected non-propagated entry to be cleared")
	}
	v, ok := c.Get("conn.state")
	if !ok || v != "keep-me" {
		t.Fatalf("expected propagated entry to survive, got %v %v", v, ok)
	}
}

func TestContext_DeleteAndKeys(t *testing.T) {
	c := NewContext()
	c.Set("a", 1, false)
	c.Set("b", 2, false)
	c.Delete("a")

	keys := c.Keys()
	if len(keys) != 1 || keys[0] != "b" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}
