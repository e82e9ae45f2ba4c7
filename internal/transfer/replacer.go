package transfer

import (
	"fmt"
	"io"
	"os"
)

// BackupSuffix is appended to the original file while it is being replaced.
const BackupSuffix = ".zs-old"

// Replacer safely replaces a file with rollback support
type Replacer struct {
	currentPath string
	backupPath  string
	keepBackup  bool
}

// NewReplacer creates a new replacer for the file at currentPath.
// With keepBackup the previous version stays next to it as <path>.zs-old.
func NewReplacer(currentPath string, keepBackup bool) *Replacer {
	return &Replacer{
		currentPath: currentPath,
		backupPath:  currentPath + BackupSuffix,
		keepBackup:  keepBackup,
	}
}

// BackupPath returns where the previous version is kept.
func (r *Replacer) BackupPath() string {
	return r.backupPath
}

// Replace replaces the current file with newFile, keeping its permissions.
func (r *Replacer) Replace(newFile string) error {
	info, err := os.Stat(r.currentPath)
	if err != nil {
		return fmt.Errorf("failed to stat current file: %w", err)
	}

	// 1. Create backup of current file
	if err := r.createBackup(); err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	// 2. Replace with new file (atomic rename)
	if err := os.Rename(newFile, r.currentPath); err != nil {
		_ = os.Remove(r.backupPath)
		return fmt.Errorf("failed to replace file: %w", err)
	}

	// 3. Restore the original permissions
	if err := os.Chmod(r.currentPath, info.Mode().Perm()); err != nil {
		_ = r.Rollback()
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	// 4. Remove backup on success
	if !r.keepBackup {
		_ = os.Remove(r.backupPath)
	}

	return nil
}

// Rollback restores the backup if the update fails
func (r *Replacer) Rollback() error {
	if _, err := os.Stat(r.backupPath); os.IsNotExist(err) {
		return fmt.Errorf("backup not found: %s", r.backupPath)
	}

	if err := os.Rename(r.backupPath, r.currentPath); err != nil {
		return fmt.Errorf("failed to restore from backup: %w", err)
	}

	return nil
}

// createBackup copies the current file to the backup path
func (r *Replacer) createBackup() error {
	src, err := os.Open(r.currentPath)
	if err != nil {
		return fmt.Errorf("failed to open current file: %w", err)
	}
	defer func() { _ = src.Close() }()

	srcInfo, err := src.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat current file: %w", err)
	}

	dst, err := os.OpenFile(r.backupPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, srcInfo.Mode())
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer func() { _ = dst.Close() }()

	if _, err := io.Copy(dst, src); err != nil {
		_ = os.Remove(r.backupPath) // Clean up partial backup
		return fmt.Errorf("failed to copy file to backup: %w", err)
	}

	return nil
}
