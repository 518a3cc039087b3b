package registry

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStaticClassify(t *testing.T) {
	t.Parallel()

	if got := NewStatic("staff").Classify("abc", "Rex"); got != "staff" {
		t.Errorf("Classify() = %q, want %q", got, "staff")
	}
	if got := NewStatic("").Classify("abc", "Rex"); got != DefaultLabel {
		t.Errorf("Classify() = %q, want default %q", got, DefaultLabel)
	}
}

func TestTableClassify(t *testing.T) {
	t.Parallel()

	table := &Table{
		Default: "resident",
		Subjects: map[string]string{
			"abc": "staff",
			"def": "",
		},
	}

	tests := []struct {
		name string
		id   string
		want string
	}{
		{name: "listed", id: "abc", want: "staff"},
		{name: "blank_label_falls_back", id: "def", want: "resident"},
		{name: "unlisted", id: "ghost", want: "resident"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := table.Classify(tc.id, ""); got != tc.want {
				t.Errorf("Classify(%q) = %q, want %q", tc.id, got, tc.want)
			}
		})
	}
}

func TestLoadTable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ranks.yaml")
	data := []byte("default: resident\nsubjects:\n  \"abc\": staff\n  \"def\": scout\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write table: %v", err)
	}

	table, err := LoadTable(path)
	if err != nil {
		t.Fatalf("LoadTable() error = %v", err)
	}
	if got := table.Classify("abc", ""); got != "staff" {
		t.Errorf("Classify(abc) = %q, want %q", got, "staff")
	}
	if got := table.Classify("ghost", ""); got != "resident" {
		t.Errorf("Classify(ghost) = %q, want %q", got, "resident")
	}
}

func TestLoadTableDefaultsWhenOmitted(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ranks.yaml")
	if err := os.WriteFile(path, []byte("subjects:\n  \"abc\": staff\n"), 0o600); err != nil {
		t.Fatalf("write table: %v", err)
	}

	table, err := LoadTable(path)
	if err != nil {
		t.Fatalf("LoadTable() error = %v", err)
	}
	if got := table.Classify("ghost", ""); got != DefaultLabel {
		t.Errorf("Classify(ghost) = %q, want %q", got, DefaultLabel)
	}
}

func TestLoadTableErrors(t *testing.T) {
	t.Parallel()

	if _, err := LoadTable(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("subjects: [not, a, map"), 0o600); err != nil {
		t.Fatalf("write table: %v", err)
	}
	if _, err := LoadTable(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}
