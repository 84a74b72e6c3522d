// Package naming derives collision-free output paths for compressed files.
package naming

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	compressedSuffix = "_compressed"
	// PartSuffix marks an in-progress download; such files must never be
	// mistaken for finished output.
	PartSuffix = ".part"
	// maxCandidates bounds the numeric disambiguation before a job fails
	// rather than silently overwriting.
	maxCandidates = 1000
)

// OutputPath returns the destination for a compressed copy of sourceName in
// outDir: "<stem>_compressed.<container>", with a numeric disambiguator
// ("_2", "_3", ...) when that name is taken. Returns an error once all
// candidates are exhausted.
func OutputPath(outDir, sourceName, container string) (string, error) {
	base := filepath.Base(sourceName)
	stem := strings.TrimSuffix(base, filepath.Ext(base)) + compressedSuffix
	ext := "." + strings.TrimPrefix(container, ".")

	candidate := filepath.Join(outDir, stem+ext)
	if !exists(candidate) {
		return candidate, nil
	}
	for i := 2; i < maxCandidates; i++ {
		candidate = filepath.Join(outDir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if !exists(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("refusing to overwrite existing outputs for %s%s", stem, ext)
}

// PartPath returns the temporary download path for a final output path.
func PartPath(finalPath string) string {
	return finalPath + PartSuffix
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
