package plugin

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// writeManifest creates root/name/plugin.json for a plugin declaring actions.
func writeManifest(t *testing.T, root, name string, actions ...string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}
	data, err := json.Marshal(Manifest{
		Name:        name,
		Version:     "1.0.0",
		Description: "plugin " + name,
		Executable:  name + "-bin",
		Actions:     actions,
	})
	if err != nil {
		t.Fatalf("failed to marshal manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "plugin.json"), data, 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return dir
}

func TestManager_Discover(t *testing.T) {
	tmpDir := t.TempDir()
	pluginDir := writeManifest(t, tmpDir, "notify", ActionAlert, "log")

	manager := NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 1 {
		t.Fatalf("expected 1 plugin, got %d", len(plugins))
	}

	p := plugins[0]
	if p.Manifest.Name != "notify" || p.Manifest.Description != "plugin notify" {
		t.Errorf("manifest = %+v", p.Manifest)
	}
	if len(p.Manifest.Actions) != 2 || !p.Manifest.Supports(ActionAlert) {
		t.Errorf("actions = %v", p.Manifest.Actions)
	}
	if p.Path != pluginDir {
		t.Errorf("expected path %q, got %q", pluginDir, p.Path)
	}
	if p.Executable != filepath.Join(pluginDir, "notify-bin") {
		t.Errorf("executable = %q", p.Executable)
	}
}

func TestManager_Discover_Skips(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, dir string)
	}{
		{"empty dir", func(t *testing.T, dir string) {}},
		{"invalid JSON", func(t *testing.T, dir string) {
			bad := filepath.Join(dir, "bad")
			os.MkdirAll(bad, 0755)
			os.WriteFile(filepath.Join(bad, "plugin.json"), []byte("not valid json"), 0644)
		}},
		{"missing name", func(t *testing.T, dir string) {
			anon := filepath.Join(dir, "anon")
			os.MkdirAll(anon, 0755)
			os.WriteFile(filepath.Join(anon, "plugin.json"), []byte(`{"executable":"x"}`), 0644)
		}},
		{"no manifest", func(t *testing.T, dir string) {
			os.MkdirAll(filepath.Join(dir, "stray"), 0755)
		}},
		{"plain file", func(t *testing.T, dir string) {
			os.WriteFile(filepath.Join(dir, "README"), []byte("hi"), 0644)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.setup(t, dir)

			manager := NewManager(dir)
			if err := manager.Discover(); err != nil {
				t.Fatalf("Discover() failed: %v", err)
			}
			if n := len(manager.List()); n != 0 {
				t.Errorf("expected 0 plugins, got %d", n)
			}
		})
	}
}

func TestManager_Discover_NonExistentDir(t *testing.T) {
	manager := NewManager("/path/that/does/not/exist")
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed on non-existent dir: %v", err)
	}
	if len(manager.List()) != 0 {
		t.Fatal("expected no plugins")
	}
}

func TestManager_Discover_Rescan(t *testing.T) {
	tmpDir := t.TempDir()
	dir := writeManifest(t, tmpDir, "first", ActionAlert)

	manager := NewManager(tmpDir)
	manager.Discover()
	os.RemoveAll(dir)
	writeManifest(t, tmpDir, "second", ActionAlert)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	if _, err := manager.Get("first"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("removed plugin still listed: %v", err)
	}
	if _, err := manager.Get("second"); err != nil {
		t.Errorf("Get(second) error = %v", err)
	}
}

func TestManager_Get(t *testing.T) {
	tmpDir := t.TempDir()
	writeManifest(t, tmpDir, "plugin-a", ActionAlert)
	writeManifest(t, tmpDir, "plugin-b", ActionAlert)

	manager := NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	p, err := manager.Get("plugin-b")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if p.Manifest.Name != "plugin-b" {
		t.Errorf("expected plugin-b, got %q", p.Manifest.Name)
	}

	if _, err := manager.Get("nonexistent-plugin"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("expected ErrPluginNotFound, got %v", err)
	}
}

func TestManager_PluginDir(t *testing.T) {
	pluginDir := "/path/to/plugins"
	if got := NewManager(pluginDir).PluginDir(); got != pluginDir {
		t.Errorf("expected plugin dir %q, got %q", pluginDir, got)
	}
}

func TestManager_WithAction(t *testing.T) {
	tmpDir := t.TempDir()
	writeManifest(t, tmpDir, "zeta", ActionAlert)
	writeManifest(t, tmpDir, "alpha", "log", ActionAlert)
	writeManifest(t, tmpDir, "mid", "log")

	manager := NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	got := manager.WithAction(ActionAlert)
	if len(got) != 2 || got[0].Manifest.Name != "alpha" || got[1].Manifest.Name != "zeta" {
		t.Errorf("WithAction() = %v", got)
	}
	if len(manager.WithAction("unknown")) != 0 {
		t.Error("expected no plugins for unknown action")
	}
}
