// Package wipe removes input files after successful compression.
package wipe

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"os/exec"
)

// Deleter removes a file from disk.
type Deleter interface {
	Delete(path string) error
}

// Plain removes the file with a single unlink. A missing file is not an
// error; someone else already removed it.
type Plain struct{}

func (Plain) Delete(path string) error {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Shred overwrites the file via shred(1) before unlinking, falling back to a
// plain unlink when shred is unavailable or fails. Best effort only: on
// copy-on-write or log-structured filesystems the old blocks may survive, so
// this is not a cryptographic erasure guarantee.
type Shred struct{}

func (Shred) Delete(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	cmd := exec.Command("shred", "-u", path)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	_ = cmd.Run()

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return Plain{}.Delete(path)
}

// ForConfig returns the deleter selected by the secure-delete toggle.
func ForConfig(secureDelete bool) Deleter {
	if secureDelete {
		return Shred{}
	}
	return Plain{}
}
