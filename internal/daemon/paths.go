package daemon

import (
	"path/filepath"
)

// Runtime files of a running server live under <home>/protected.

func protectedDir(home string) string {
	return filepath.Join(home, "protected")
}

func pidPath(home string) string {
	return filepath.Join(protectedDir(home), "daemon.pid")
}

func lockPath(home string) string {
	return filepath.Join(protectedDir(home), "daemon.lock")
}

func addrPath(home string) string {
	return filepath.Join(protectedDir(home), "daemon.addr")
}

// logPath receives stderr of a detached server.
func logPath(home string) string {
	return filepath.Join(protectedDir(home), "daemon.log")
}
