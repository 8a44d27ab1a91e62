// Package perms provides the file and directory permissions used when mcphub writes to disk.
package perms

import "os"

const (
	// RegularFile permissions for stored uploads and exported files.
	// Mode 0644: owner read/write, group read, others read.
	RegularFile os.FileMode = 0o644

	// SecureFile permissions for files holding secrets, such as a generated signing key.
	// Mode 0600: owner read/write only.
	SecureFile os.FileMode = 0o600
)

const (
	// RegularDir permissions for the storage root and generated docs directories.
	// Mode 0755: owner read/write/execute, group read/execute, others read/execute.
	RegularDir os.FileMode = 0o755
)
