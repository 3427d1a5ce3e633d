package util

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// PathExists() is a wrapper function that simplifies checking
// if a file or directory already exists at the provided path.
func PathExists(path string) (fs.FileInfo, bool) {
	fi, err := os.Stat(path)
	return fi, !os.IsNotExist(err)
}

// SplitPathForViper() splits a path into directory, file name without the
// extension, and extension, which is the form viper's config API takes.
func SplitPathForViper(path string) (string, string, string) {
	filename := filepath.Base(path)
	ext := filepath.Ext(filename)
	return filepath.Dir(path), strings.TrimSuffix(filename, ext), strings.TrimPrefix(ext, ".")
}
