package prefs

import (
	"encoding/json"
	"os"
	"path/filepath"
)

const viewerFile = "viewer.json"

// Viewer is what the shell restores on the next start.
type Viewer struct {
	Source   string `json:"source"`
	Colormap string `json:"colormap"`
}

// Dir is the directory preferences live in. Tests point it elsewhere.
var Dir = func() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "pyramidview"), nil
}

func viewerPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, viewerFile), nil
}

func SaveViewer(v Viewer) error {
	path, err := viewerPath()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadViewer returns the saved preferences, or the zero value when none exist.
func LoadViewer() (Viewer, error) {
	path, err := viewerPath()
	if err != nil {
		return Viewer{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Viewer{}, nil
		}
		return Viewer{}, err
	}
	var v Viewer
	if err := json.Unmarshal(data, &v); err != nil {
		return Viewer{}, err
	}
	return v, nil
}
