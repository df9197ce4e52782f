package style

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestBuiltin_Presets(t *testing.T) {
	r := Builtin()
	want := []string{"cosmic", "gold_leaf", "ink_brush", "minimal_line", "sacred_geometry", "watercolor"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for _, name := range want {
		s, ok := r.Lookup(name)
		if !ok {
			t.Fatalf("Lookup(%q) missing", name)
		}
		if s.Name != name {
			t.Errorf("%s: Name = %q", name, s.Name)
		}
		if s.DisplayName == "" || s.Prompt == "" || s.NegativePrompt == "" {
			t.Errorf("%s: empty prompt fields", name)
		}
		if s.ControlType != ControlLineart && s.ControlType != ControlCanny {
			t.Errorf("%s: ControlType = %q", name, s.ControlType)
		}
		switch s.BlendMode {
		case "multiply", "overlay", "soft_light":
		default:
			t.Errorf("%s: BlendMode = %q", name, s.BlendMode)
		}
		if s.DenoiseStrength <= 0 || s.DenoiseStrength >= 1 {
			t.Errorf("%s: DenoiseStrength = %v", name, s.DenoiseStrength)
		}
	}
}

func TestDefault(t *testing.T) {
	if got := Builtin().Default(); got.Name != "watercolor" {
		t.Errorf("Default().Name = %q", got.Name)
	}
}

func TestLookup_Unknown(t *testing.T) {
	if _, ok := Builtin().Lookup("vaporwave"); ok {
		t.Error("Lookup(vaporwave) = true, want false")
	}
}

func TestStyles_OrderedByName(t *testing.T) {
	r := Builtin()
	names := r.Names()
	styles := r.Styles()
	if len(styles) != len(names) {
		t.Fatalf("Styles() len = %d, want %d", len(styles), len(names))
	}
	for i, s := range styles {
		if s.Name != names[i] {
			t.Errorf("Styles()[%d].Name = %q, want %q", i, s.Name, names[i])
		}
	}
}

func TestMerge_PatchesKnownStyle(t *testing.T) {
	r := Builtin()
	before, _ := r.Lookup("watercolor")

	err := r.Merge([]byte("watercolor:\n  denoise_strength: 0.5\n"))
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	after, _ := r.Lookup("watercolor")
	if after.DenoiseStrength != 0.5 {
		t.Errorf("DenoiseStrength = %v, want 0.5", after.DenoiseStrength)
	}
	if after.Prompt != before.Prompt {
		t.Error("Prompt changed by unrelated override")
	}
	if after.BlendMode != before.BlendMode {
		t.Error("BlendMode changed by unrelated override")
	}
}

func TestMerge_SeedsUnknownFromDefault(t *testing.T) {
	r := Builtin()
	err := r.Merge([]byte("ember:\n  prompt: glowing ember texture\n  control_type: canny\n"))
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	s, ok := r.Lookup("ember")
	if !ok {
		t.Fatal("Lookup(ember) missing after merge")
	}
	if s.Name != "ember" || s.DisplayName != "ember" {
		t.Errorf("seeded name = %q / %q", s.Name, s.DisplayName)
	}
	if s.Prompt != "glowing ember texture" {
		t.Errorf("Prompt = %q", s.Prompt)
	}
	if s.ControlType != ControlCanny {
		t.Errorf("ControlType = %q", s.ControlType)
	}
	if s.NegativePrompt != r.Default().NegativePrompt {
		t.Error("NegativePrompt not inherited from default")
	}
}

func TestMerge_Malformed(t *testing.T) {
	if err := Builtin().Merge([]byte("{{nope")); err == nil {
		t.Error("expected parse error")
	}
}

func TestMergeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "styles.yaml")
	if err := os.WriteFile(path, []byte("ink_brush:\n  texture_strength: 0.45\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := Builtin()
	if err := r.MergeFile(path); err != nil {
		t.Fatalf("MergeFile: %v", err)
	}
	if s, _ := r.Lookup("ink_brush"); s.TextureStrength != 0.45 {
		t.Errorf("TextureStrength = %v, want 0.45", s.TextureStrength)
	}

	if err := r.MergeFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
