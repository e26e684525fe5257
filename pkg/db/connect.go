package db

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver (cgo)
	_ "modernc.org/sqlite"          // SQLite driver (pure Go)
)

const (
	// DriverCGO is the mattn/go-sqlite3 driver name and the default.
	DriverCGO = "sqlite3"
	// DriverPure is the modernc.org/sqlite driver name, for CGO_ENABLED=0 builds.
	DriverPure = "sqlite"
)

// validSyncModes lists the allowed values for the synchronous pragma.
var validSyncModes = map[string]bool{
	"OFF":    true,
	"NORMAL": true,
	"FULL":   true,
	"EXTRA":  true,
}

// Options controls how a database connection is opened.
type Options struct {
	// Driver is DriverCGO or DriverPure. Empty means DriverCGO.
	Driver string
	// WAL sets journal_mode=WAL so readers are not blocked by the single writer.
	WAL bool
	// Sync is the synchronous pragma (OFF, NORMAL, FULL, EXTRA). Empty leaves the SQLite default.
	Sync string
	// BusyTimeout bounds how long a writer waits for the write lock before failing with ErrBusy.
	BusyTimeout time.Duration
}

// DefaultOptions returns the options used by the CLI when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Driver:      DriverCGO,
		WAL:         true,
		Sync:        "NORMAL",
		BusyTimeout: 5 * time.Second,
	}
}

// OpenDBConnection establishes a connection to a SQLite database.
// baseDSN is the file path (or ":memory:"). Foreign key enforcement, the busy timeout
// and immediate transaction locking are set through the DSN so that every pooled
// connection gets them, and foreign key enforcement is verified before returning.
func OpenDBConnection(baseDSN string, opts Options) (*sqlx.DB, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverCGO
	}

	syncPragma := ""
	if opts.Sync != "" {
		syncPragma = strings.ToUpper(opts.Sync)
		if !validSyncModes[syncPragma] {
			return nil, fmt.Errorf("invalid sync pragma value: %s. Must be one of OFF, NORMAL, FULL, EXTRA", opts.Sync)
		}
	}

	var params url.Values
	switch driver {
	case DriverCGO:
		params = mattnParams(opts, syncPragma)
	case DriverPure:
		params = moderncParams(opts, syncPragma)
	default:
		return nil, fmt.Errorf("unsupported sqlite driver %q (want %q or %q)", driver, DriverCGO, DriverPure)
	}

	constructedDSN := baseDSN
	if strings.Contains(baseDSN, "?") {
		constructedDSN += "&" + params.Encode()
	} else {
		constructedDSN += "?" + params.Encode()
	}

	db, err := sqlx.Open(driver, constructedDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database with DSN '%s': %w", constructedDSN, err)
	}

	// Every connection to an in-memory database is a different database.
	if strings.Contains(baseDSN, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database with DSN '%s': %w", constructedDSN, err)
	}

	// Cascade rules are inert without enforcement, so refuse to hand out a connection without it.
	var fk int
	if err = db.Get(&fk, "PRAGMA foreign_keys"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read foreign_keys pragma for DSN '%s': %w", constructedDSN, err)
	}
	if fk != 1 {
		db.Close()
		return nil, fmt.Errorf("foreign key enforcement is not active for DSN '%s'", constructedDSN)
	}

	return db, nil
}

func mattnParams(opts Options, syncPragma string) url.Values {
	params := url.Values{}
	params.Add("_foreign_keys", "1")
	params.Add("_txlock", "immediate")
	if opts.BusyTimeout > 0 {
		params.Add("_busy_timeout", fmt.Sprint(opts.BusyTimeout.Milliseconds()))
	}
	if opts.WAL {
		params.Add("_journal_mode", "WAL")
	}
	if syncPragma != "" {
		params.Add("_synchronous", syncPragma)
	}
	return params
}

func moderncParams(opts Options, syncPragma string) url.Values {
	params := url.Values{}
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_txlock", "immediate")
	if opts.BusyTimeout > 0 {
		params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", opts.BusyTimeout.Milliseconds()))
	}
	if opts.WAL {
		params.Add("_pragma", "journal_mode(WAL)")
	}
	if syncPragma != "" {
		params.Add("_pragma", fmt.Sprintf("synchronous(%s)", syncPragma))
	}
	return params
}

// Close checkpoints the WAL back into the main database file and closes conn.
// A failed checkpoint is logged, not returned.
func Close(conn *sqlx.DB, logger *slog.Logger) error {
	if conn == nil {
		return nil
	}
	// TRUNCATE mode waits for transactions and writes the WAL back to the main DB.
	if _, err := conn.Exec("PRAGMA wal_checkpoint(TRUNCATE);"); err != nil && logger != nil {
		logger.Warn("WAL checkpoint failed during close", "error", err)
	}
	return conn.Close()
}
