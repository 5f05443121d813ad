package utils

import (
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
)

// imageExts lists the extensions the decoders are registered for
var imageExts = []string{"jpg", "jpeg", "png", "webp"}

// EnsureDir creates dir and its parents
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// GetFileExtension returns the file extension without the dot
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// IsImageFile checks if a file has a decodable image extension
func IsImageFile(filename string) bool {
	return slices.Contains(imageExts, GetFileExtension(filename))
}

// GenerateOutputFilename derives an output path in outputDir from an input
// file path or http(s) URL. An empty format keeps the input extension
func GenerateOutputFilename(input, outputDir, prefix, suffix, format string) string {
	name := input
	if u, err := url.Parse(input); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		name = path.Base(u.Path)
		if name == "/" || name == "." {
			name = u.Hostname()
		}
	}
	name = filepath.Base(name)
	stem := strings.TrimSuffix(name, filepath.Ext(name))

	if format == "" {
		format = GetFileExtension(name)
	}
	if format == "" {
		format = "png"
	}

	return filepath.Join(outputDir, prefix+stem+suffix+"."+format)
}

// ListImageFiles recursively lists all image files in a directory, skipping
// skipDir and everything below it
func ListImageFiles(dir, skipDir string) ([]string, error) {
	var files []string

	skip := ""
	if skipDir != "" {
		skip = filepath.Clean(skipDir)
	}

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skip != "" && filepath.Clean(p) == skip {
				return filepath.SkipDir
			}
			return nil
		}
		if IsImageFile(p) {
			files = append(files, p)
		}
		return nil
	})

	return files, err
}

// FormatFileSize formats file size in human-readable format
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
