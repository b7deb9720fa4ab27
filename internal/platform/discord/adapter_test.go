package discord

import "testing"

func TestPlatformName(t *testing.T) {
	a := &Adapter{}
	if a.Platform() != "discord" {
		t.Fatalf("Platform() = %q, want %q", a.Platform(), "discord")
	}
}
