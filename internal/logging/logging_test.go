package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitializeWritesFile(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(Options{Dir: dir, Debug: true}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer func() {
		Sync()
		_ = Initialize(Options{})
	}()

	L(CategorySolver).Infof("probe %s", "app=a")
	L(CategoryParser).Debugf("parsed %d rules", 3)
	Sync()

	data, err := os.ReadFile(filepath.Join(dir, "placefix.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "probe app=a") {
		t.Errorf("missing solver record in %q", out)
	}
	if !strings.Contains(out, "solver") {
		t.Errorf("missing category name in %q", out)
	}
	if !strings.Contains(out, "parsed 3 rules") {
		t.Errorf("missing debug record in %q", out)
	}
}

func TestInitializeWithoutDir(t *testing.T) {
	if err := Initialize(Options{}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	// Logging to stderr only; just exercise the paths.
	L(CategoryCLI).Infof("hello")
	Sync()
}
