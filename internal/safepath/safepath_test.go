package safepath

import "testing"

func TestRootsContains(t *testing.T) {
	r := Roots{"/music/regular", "/music/holiday"}
	tests := []struct {
		path  string
		allow bool
	}{
		{"/music/regular/song.mp3", true},
		{"/music/regular/sub/song.mp3", true},
		{"/music/holiday", true},
		{"/music/other/song.mp3", false},
		{"/music/regular/../other/song.mp3", false},
		{"relative/song.mp3", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := r.Contains(tt.path); got != tt.allow {
			t.Errorf("Contains(%q) = %v, want %v", tt.path, got, tt.allow)
		}
	}
}

func TestRootsContainsEmptyRootsRejectsEverything(t *testing.T) {
	var r Roots
	if r.Contains("/music/regular/song.mp3") {
		t.Fatal("empty Roots must reject all paths")
	}
}
