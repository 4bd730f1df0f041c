package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// writeJSONFile сохраняет v как JSON с отступами.
func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
