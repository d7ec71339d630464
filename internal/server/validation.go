// validation.go - Input sanitization at the upload boundary
package server

import (
	"path/filepath"
	"strings"
)

// SanitizeFilename removes path separators and control bytes from a
// client-supplied file name before the name is stored. Names are not
// required to be unique; only dangerous characters are rejected.
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")
	filename = strings.ReplaceAll(filename, "\x00", "")
	filename = strings.Trim(filename, " .")

	if len(filename) > 255 {
		ext := filepath.Ext(filename)
		if len(ext) >= 255 {
			// Extension alone exceeds the cap; keep the head of the name.
			filename = filename[:255]
		} else {
			nameWithoutExt := filename[:len(filename)-len(ext)]
			filename = nameWithoutExt[:255-len(ext)] + ext
		}
	}

	if filename == "" {
		filename = "unnamed"
	}

	return filename
}
