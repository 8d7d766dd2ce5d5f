// Package fileutil writes downloaded files safely into place.
package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Written describes a file produced by WriteAtomic.
type Written struct {
	Path   string `json:"path"`
	Bytes  int64  `json:"bytes"`
	SHA256 string `json:"sha256"`
}

// WriteAtomic streams fill's output into a temporary file next to dst and
// renames it into place once fill succeeds. On any failure the temporary
// file is removed and dst is left untouched.
func WriteAtomic(dst string, fill func(io.Writer) (int64, error)) (Written, error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Written{}, fmt.Errorf("create directory %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*.part")
	if err != nil {
		return Written{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	hasher := sha256.New()
	counter := &countingWriter{}
	written, err := fill(io.MultiWriter(tmp, hasher, counter))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil && written != counter.n {
		err = fmt.Errorf("write size mismatch: reported %d bytes, wrote %d bytes", written, counter.n)
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return Written{Bytes: counter.n}, err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return Written{Bytes: counter.n}, fmt.Errorf("move %s into place: %w", filepath.Base(dst), err)
	}
	return Written{Path: dst, Bytes: counter.n, SHA256: hex.EncodeToString(hasher.Sum(nil))}, nil
}

type countingWriter struct {
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SafeName makes a server-supplied name usable as a local file name.
// Path separators and other unsafe characters are replaced; names that
// would be empty or refer to a directory give fallback.
func SafeName(name, fallback string) string {
	name = strings.Trim(fileNameReplacer.Replace(name), " .-")
	if name == "" {
		return fallback
	}
	return name
}
