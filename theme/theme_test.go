package theme

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadGPL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.gpl")
	data := "GIMP Palette\nName: test\nColumns: 2\n# comment\n0 0 0\tblack\n255 128 0 orange\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadGPL(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "test" || len(p.Colors) != 2 {
		t.Fatalf("palette = %+v", p)
	}
	if mid := p.Lookup(0.5); mid != (RGB{127, 64, 0}) {
		t.Errorf("Lookup(0.5) = %v", mid)
	}
	if p.Lookup(-1) != p.Colors[0] || p.Lookup(2) != p.Colors[1] {
		t.Error("Lookup does not clamp")
	}
}

func TestLoadOrDefault(t *testing.T) {
	p, err := LoadOrDefault("")
	if err != nil || p.Name != "acid" {
		t.Errorf("empty path = %v, %v", p.Name, err)
	}

	p, err = LoadOrDefault(filepath.Join(t.TempDir(), "missing.gpl"))
	if err == nil {
		t.Error("missing file did not report an error")
	}
	if p == nil || len(p.Colors) == 0 {
		t.Error("missing file did not fall back to the built-in palette")
	}
}

func TestNewWithoutPalette(t *testing.T) {
	th := New(nil)
	if th.Accent() == "" {
		t.Error("no accent color")
	}
}
