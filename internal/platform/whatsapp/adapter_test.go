package whatsapp

import "testing"

func TestPlatformName(t *testing.T) {
	a := &Adapter{}
	if a.Platform() != "whatsapp" {
		t.Fatalf("Platform() = %q, want %q", a.Platform(), "whatsapp")
	}
}
