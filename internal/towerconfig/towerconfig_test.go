package towerconfig

import "testing"

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("TOWER_PORT", "")
	c := Load()
	if c.Port != 8000 {
		t.Fatalf("Port = %d, want default 8000", c.Port)
	}
	if c.SampleRate != 48000 {
		t.Fatalf("SampleRate = %d, want 48000", c.SampleRate)
	}
	if c.BufferSize != 5 {
		t.Fatalf("BufferSize = %d, want 5", c.BufferSize)
	}
}

func TestLoadHonorsOverrides(t *testing.T) {
	t.Setenv("TOWER_PORT", "9100")
	t.Setenv("TOWER_BITRATE", "320")
	c := Load()
	if c.Port != 9100 {
		t.Fatalf("Port = %d, want 9100", c.Port)
	}
	if c.BitrateKbps != 320 {
		t.Fatalf("BitrateKbps = %d, want 320", c.BitrateKbps)
	}
}

func TestLoadIgnoresUnparseableInt(t *testing.T) {
	t.Setenv("TOWER_PORT", "not-a-number")
	c := Load()
	if c.Port != 8000 {
		t.Fatalf("Port = %d, want default fallback 8000", c.Port)
	}
}
