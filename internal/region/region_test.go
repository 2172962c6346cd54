package region

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBuiltinCity(t *testing.T) {
	m := Builtin()

	tests := []struct {
		olt  string
		want string
	}{
		{"OLT-LDB-HUAWEI-DC", "Londrina"},
		{"OLT-LDB-HUAWEI-DC-02", "Londrina"},
		{"OLT-MGF-ZTE-SERENITY-02 / PON 1/1/3", "Maringá"},
		{"OLT-MRV-PARKS-MARIALVA-47", "Marialva"},
		{"OLT-JZN -HUAWEI-JATAIZINHO", "Jataizinho"},
		{"OLT-ZTE-BANCADA", "Laboratório"},
		{"OLT-XYZ-UNKNOWN", DefaultCity},
		{"", DefaultCity},
	}

	for _, tt := range tests {
		t.Run(tt.olt, func(t *testing.T) {
			if got := m.City(tt.olt); got != tt.want {
				t.Errorf("City(%q) = %q, want %q", tt.olt, got, tt.want)
			}
		})
	}
}

func TestParse_MergesOverBuiltin(t *testing.T) {
	m, err := Parse([]byte(`
default: Desconhecida
olts:
  OLT-CBM-FH-CAMBE-01: Cambé
  OLT-LDB-HUAWEI-DC: Londrina Centro
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if got := m.City("OLT-CBM-FH-CAMBE-01"); got != "Cambé" {
		t.Errorf("new entry = %q, want Cambé", got)
	}
	if got := m.City("OLT-LDB-HUAWEI-DC"); got != "Londrina Centro" {
		t.Errorf("overridden entry = %q, want Londrina Centro", got)
	}
	if got := m.City("OLT-LDB-HUAWEI-OSCAR"); got != "Londrina" {
		t.Errorf("builtin entry = %q, want Londrina", got)
	}
	if got := m.City("nada"); got != "Desconhecida" {
		t.Errorf("fallback = %q, want Desconhecida", got)
	}
	if m.Len() != Builtin().Len()+1 {
		t.Errorf("Len = %d, want builtin+1", m.Len())
	}
}

func TestParse_Replace(t *testing.T) {
	m, err := Parse([]byte("replace: true\nolts:\n  OLT-A: Cidade A\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Len() != 1 {
		t.Fatalf("Len = %d, want 1", m.Len())
	}
	if got := m.City("OLT-LDB-HUAWEI-DC"); got != DefaultCity {
		t.Errorf("replaced builtin = %q, want %q", got, DefaultCity)
	}
	if got := m.City("OLT-A-02"); got != "Cidade A" {
		t.Errorf("City(OLT-A-02) = %q, want Cidade A", got)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("olts: [not, a, map]")); err == nil {
		t.Error("expected error for malformed olts")
	}
	if _, err := Parse([]byte("olts:\n  OLT-A: \"\"\n")); err == nil {
		t.Error("expected error for empty city")
	}
}

func TestLoad(t *testing.T) {
	m, err := Load("")
	if err != nil || m.Len() != Builtin().Len() {
		t.Fatalf("Load(\"\") = %v, %v", m, err)
	}

	path := filepath.Join(t.TempDir(), "regions.yml")
	if err := os.WriteFile(path, []byte("olts:\n  OLT-NOVA: Nova Cidade\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err = Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := m.City("OLT-NOVA-01"); got != "Nova Cidade" {
		t.Errorf("City = %q, want Nova Cidade", got)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("expected error for missing file")
	}
}
