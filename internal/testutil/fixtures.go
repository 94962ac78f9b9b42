// Package testutil builds throwaway CMS databases and application directories for
// tests. Databases are SQLite files with the subset of the CMS schema the checks read.
package testutil

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/steveyegge/inspector/internal/data"
)

const schema = `
CREATE TABLE CMS_SettingsKey (
	KeyID    INTEGER PRIMARY KEY,
	KeyName  TEXT NOT NULL,
	KeyValue TEXT,
	SiteID   INTEGER
);

CREATE TABLE CMS_Site (
	SiteID          INTEGER PRIMARY KEY,
	SiteName        TEXT NOT NULL,
	SiteDisplayName TEXT NOT NULL,
	SiteStatus      TEXT NOT NULL,
	SiteDomainName  TEXT NOT NULL
);

CREATE TABLE CMS_EventLog (
	EventID   INTEGER PRIMARY KEY,
	EventType TEXT NOT NULL,
	Source    TEXT NOT NULL,
	EventCode TEXT NOT NULL,
	EventTime TEXT NOT NULL
);

CREATE TABLE CMS_ScheduledTask (
	TaskID          INTEGER PRIMARY KEY,
	TaskName        TEXT NOT NULL,
	TaskDisplayName TEXT NOT NULL,
	TaskEnabled     INTEGER NOT NULL,
	TaskLastResult  TEXT
);
`

const seed = `
INSERT INTO CMS_SettingsKey (KeyName, KeyValue, SiteID) VALUES
	('CMSDebugEverything', 'False', NULL),
	('CMSDebugSQLQueries', 'True', NULL),
	('CMSDebugMacros', 'True', 1),
	('CMSStagingServiceEnabled', 'False', NULL);

INSERT INTO CMS_Site (SiteID, SiteName, SiteDisplayName, SiteStatus, SiteDomainName) VALUES
	(1, 'DancingGoat', 'Dancing Goat', 'RUNNING', 'localhost'),
	(2, 'Corporate', 'Corporate Site', 'STOPPED', 'corporate.local');

INSERT INTO CMS_EventLog (EventType, Source, EventCode, EventTime) VALUES
	('E', 'Scheduler', 'EXCEPTION', '2024-03-01T10:00:00Z'),
	('E', 'Scheduler', 'EXCEPTION', '2024-03-02T10:00:00Z'),
	('E', 'Content', 'SAVEDOC', '2024-03-02T11:00:00Z'),
	('W', 'Content', 'SLOW', '2024-03-02T12:00:00Z'),
	('I', 'Authentication', 'LOGIN', '2024-03-03T09:00:00Z');

INSERT INTO CMS_ScheduledTask (TaskName, TaskDisplayName, TaskEnabled, TaskLastResult) VALUES
	('CleanTempFiles', 'Clean temporary files', 1, ''),
	('PublishContent', 'Content publishing', 1, 'Timeout expired'),
	('SendNewsletters', 'Newsletter sender', 0, 'SMTP unreachable');
`

type options struct {
	version *string
	extra   []string
}

// Option adjusts the fixture database.
type Option func(*options)

// WithVersion stores v as the database version setting. The default is "8.1".
func WithVersion(v string) Option {
	return func(o *options) { o.version = &v }
}

// WithoutVersion leaves the version setting out entirely.
func WithoutVersion() Option {
	return func(o *options) { o.version = nil }
}

// WithSQL runs additional statements after seeding.
func WithSQL(statements ...string) Option {
	return func(o *options) { o.extra = append(o.extra, statements...) }
}

// CMSDatabase creates a seeded SQLite database in a temporary directory and returns
// the configuration that reaches it.
func CMSDatabase(t testing.TB, opts ...Option) data.Config {
	t.Helper()

	def := "8.1"
	o := options{version: &def}
	for _, opt := range opts {
		opt(&o)
	}

	path := filepath.Join(t.TempDir(), "cms.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("opening fixture database: %v", err)
	}
	defer db.Close()

	statements := []string{schema, seed}
	if o.version != nil {
		statements = append(statements,
			"INSERT INTO CMS_SettingsKey (KeyName, KeyValue) VALUES ('CMSDBVersion', '"+*o.version+"')")
	}
	statements = append(statements, o.extra...)
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("preparing fixture database: %v", err)
		}
	}
	return data.Config{Driver: data.DriverSQLite, Name: path}
}

// WebRoot writes files (relative name to content) into a temporary application
// directory and returns its path.
func WebRoot(t testing.TB, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("creating %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	return root
}
