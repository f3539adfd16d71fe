package sqlite

import (
	"net/url"
	"os"
	"os/exec"
	"strings"
)

// isRecoverableWALError reports whether err looks like the kind of failure
// a stale WAL/SHM pair left behind by a crashed process would produce.
func isRecoverableWALError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "disk i/o error")
}

// dbPathFromDSN extracts the filesystem path component from a sqlite DSN,
// stripping any query parameters.
func dbPathFromDSN(dsn string) string {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file::memory:") {
		return ":memory:"
	}
	path := dsn
	if u, err := url.Parse(dsn); err == nil && u.Path != "" {
		path = u.Path
	} else if idx := strings.Index(dsn, "?"); idx != -1 {
		path = dsn[:idx]
	}
	return path
}

// isWALStale reports whether the -wal/-shm files for dbPath exist but no
// running process currently holds the database file open.
func isWALStale(dbPath string) bool {
	walPath := dbPath + "-wal"
	if _, err := os.Stat(walPath); os.IsNotExist(err) {
		return false
	}

	out, err := exec.Command("lsof", dbPath).Output()
	if err != nil {
		// lsof unavailable or found nothing holding the file; treat as stale.
		return true
	}
	return len(strings.TrimSpace(string(out))) == 0
}

// removeStaleWAL deletes the -wal and -shm sidecar files for dbPath.
func removeStaleWAL(dbPath string) {
	_ = os.Remove(dbPath + "-wal")
	_ = os.Remove(dbPath + "-shm")
}
