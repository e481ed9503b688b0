package dataset

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// WriteJSON writes v to path as two-space indented JSON, creating parent
// directories as needed. HTML characters and non-ASCII text are written
// literally.
func WriteJSON(path string, v any) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "dataset: create dir %s", dir)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "dataset: create %s", path)
	}

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = f.Close()
		return eris.Wrapf(err, "dataset: encode %s", path)
	}
	return eris.Wrapf(f.Close(), "dataset: close %s", path)
}
