package batch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"herdscreen/internal/config"
	"herdscreen/internal/services"
)

// Limits are the client-side upload checks.
type Limits struct {
	MaxBytes   int64
	Extensions []string
}

// LimitsFromConfig reads the [upload] section.
func LimitsFromConfig(cfg *config.Config) Limits {
	if cfg == nil {
		return Limits{}
	}
	return Limits{MaxBytes: cfg.MaxUploadBytes(), Extensions: append([]string(nil), cfg.Upload.AllowedExtensions...)}
}

// ValidateFile rejects a path that is missing, not a regular file, has an
// unsupported extension or exceeds the size limit. An empty extension list
// or a zero size limit disables that check.
func ValidateFile(path string, limits Limits) error {
	if len(limits.Extensions) > 0 {
		ext := strings.ToLower(filepath.Ext(path))
		allowed := false
		for _, candidate := range limits.Extensions {
			if strings.EqualFold(ext, candidate) {
				allowed = true
				break
			}
		}
		if !allowed {
			return &services.ValidationError{
				Path:   path,
				Reason: fmt.Sprintf("unsupported file type %q (allowed: %s)", ext, strings.Join(limits.Extensions, ", ")),
			}
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &services.ValidationError{Path: path, Reason: "file does not exist"}
		}
		return &services.ValidationError{Path: path, Reason: err.Error()}
	}
	if !info.Mode().IsRegular() {
		return &services.ValidationError{Path: path, Reason: "not a regular file"}
	}
	if limits.MaxBytes > 0 && info.Size() > limits.MaxBytes {
		return &services.ValidationError{
			Path:   path,
			Reason: fmt.Sprintf("file is %s, limit is %s", humanize.IBytes(uint64(info.Size())), humanize.IBytes(uint64(limits.MaxBytes))),
		}
	}
	return nil
}

// ValidateFiles checks every path and joins the failures.
func ValidateFiles(paths []string, limits Limits) error {
	if len(paths) == 0 {
		return &services.ValidationError{Reason: "no files selected"}
	}
	var errs []error
	for _, path := range paths {
		if err := ValidateFile(path, limits); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
