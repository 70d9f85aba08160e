package plant

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultPortMap(t *testing.T) {
	p := DefaultPortMap(DefaultBasePort)

	for i, name := range DeviceNames {
		got, err := p.Port(name)
		if err != nil {
			t.Fatalf("Port(%q) error: %v", name, err)
		}
		if want := DefaultBasePort + i; got != want {
			t.Errorf("Port(%q) = %d, want %d", name, got, want)
		}
	}

	if _, err := p.Port("boiler"); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("Port(boiler) error = %v, want ErrUnknownDevice", err)
	}
}

func TestPortMap_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "ports.json")
	want := DefaultPortMap(6000)

	if err := want.Save(path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	got, err := LoadPortMap(path)
	if err != nil {
		t.Fatalf("LoadPortMap() error: %v", err)
	}
	if got != want {
		t.Errorf("LoadPortMap() = %+v, want %+v", got, want)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
}

func TestLoadPortMap_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "not json",
			content: "plc=5020",
			wantErr: ErrInvalidPortMap,
		},
		{
			name:    "missing device",
			content: `{"plc":5020,"motor":5021,"nozzle":5022,"level":5023}`,
			wantErr: ErrInvalidPortMap,
		},
		{
			name:    "port out of range",
			content: `{"plc":5020,"motor":5021,"nozzle":5022,"level":5023,"contact":70000}`,
			wantErr: ErrInvalidPortMap,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "ports.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadPortMap(path); !errors.Is(err, tt.wantErr) {
				t.Errorf("LoadPortMap() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadPortMap_MissingFile(t *testing.T) {
	if _, err := LoadPortMap(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("LoadPortMap() on missing file should fail")
	}
}
