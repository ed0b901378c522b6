package helper

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func TestGenerateUUID(t *testing.T) {
	a, err := GenerateUUID()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := GenerateUUID()
	if a == b {
		t.Error("two UUIDs are equal")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("invalid uuid %q: %v", a, err)
	}
}

func TestCreateFolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b")
	if err := CreateFolder(path); err != nil {
		t.Fatal(err)
	}
	if err := CreateFolder(path); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		t.Fatalf("stat: %v", err)
	}
}

func TestPrettyPrint(t *testing.T) {
	var buf bytes.Buffer
	PrettyPrint(&buf, map[string]int{"chunks": 3})
	if got, want := buf.String(), "{\n  \"chunks\": 3\n}\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
