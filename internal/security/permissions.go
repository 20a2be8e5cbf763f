// internal/security/permissions.go
package security

import (
	"errors"
	"fmt"
	"os"
)

// ErrUnsafePermissions is returned when a file others can modify would be
// used to decide which commands run.
var ErrUnsafePermissions = errors.New("unsafe permissions")

// ValidateConfigFile checks that a context configuration file is not
// writable by group or others. The file names programs the daemon starts.
func ValidateConfigFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("checking file permissions: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}

	mode := info.Mode().Perm()
	if mode&0022 != 0 {
		return fmt.Errorf("%w: %s is writable by group or others (mode %04o)", ErrUnsafePermissions, path, mode)
	}
	return nil
}

// ValidateStateDirectory checks that the directory holding the history
// database is private to its owner.
func ValidateStateDirectory(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("checking directory permissions: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}

	mode := info.Mode().Perm()
	if mode&0002 != 0 {
		return fmt.Errorf("%w: directory %s is world-writable (mode %04o)", ErrUnsafePermissions, path, mode)
	}
	if mode&0077 > 0050 {
		return fmt.Errorf("%w: directory %s has mode %04o, expected 0700 or 0750", ErrUnsafePermissions, path, mode)
	}
	return nil
}
