// Package instance describes the single CMS instance under inspection. A Context is
// built from configuration without touching the network or disk; each fact about
// the instance is resolved on first use and remembered for the rest of the run.
package instance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/steveyegge/inspector/internal/data"
	"github.com/steveyegge/inspector/internal/logging"
	"github.com/steveyegge/inspector/internal/version"
)

// DefaultVersionQuery reads the database version setting.
const DefaultVersionQuery = "SELECT KeyValue FROM CMS_SettingsKey WHERE KeyName = 'CMSDBVersion'"

// Config identifies the instance.
type Config struct {
	URL      string      `mapstructure:"url" json:"url" yaml:"url"`
	Path     string      `mapstructure:"path" json:"path" yaml:"path"`
	Database data.Config `mapstructure:"database" json:"database" yaml:"database"`
}

// Opener prepares the data-access surface. It must not perform I/O.
type Opener func(cfg data.Config, opts data.Options) (data.Executor, error)

// OpenDB is the default Opener.
func OpenDB(cfg data.Config, opts data.Options) (data.Executor, error) {
	db, err := data.Open(cfg, opts)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// Option customizes a Context.
type Option func(*Context)

// WithOpener replaces the function used to open the database.
func WithOpener(open Opener) Option {
	return func(c *Context) { c.open = open }
}

// WithDataOptions sets the options passed to the opener.
func WithDataOptions(opts data.Options) Option {
	return func(c *Context) { c.dataOpts = opts }
}

// WithVersionQuery overrides the statement that reads the version setting.
func WithVersionQuery(query string) Option {
	return func(c *Context) { c.versionQuery = query }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Context) { c.logger = logger }
}

// Context exposes facts about one instance. It is safe for concurrent use; every
// fact is computed at most once, and a failure is remembered like a value.
type Context struct {
	cfg          Config
	open         Opener
	dataOpts     data.Options
	versionQuery string
	logger       *slog.Logger

	address   lazy[*url.URL]
	directory lazy[Directory]
	db        lazy[data.Executor]
	version   lazy[version.Version]
}

// New builds a Context from cfg. It performs no I/O.
func New(cfg *Config, opts ...Option) (*Context, error) {
	if cfg == nil {
		return nil, &ConfigurationError{Field: "instance", Err: errors.New("no configuration supplied")}
	}
	c := &Context{
		cfg:          *cfg,
		open:         OpenDB,
		versionQuery: DefaultVersionQuery,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.L("instance")
	}
	if c.dataOpts.Logger == nil {
		c.dataOpts.Logger = c.logger
	}
	return c, nil
}

// Config returns a copy of the configuration the context was built from.
func (c *Context) Config() Config {
	return c.cfg
}

// Address returns the parsed instance URL.
func (c *Context) Address() (*url.URL, error) {
	u, err := c.address.get(c.resolveAddress)
	if err != nil {
		return nil, err
	}
	copied := *u
	return &copied, nil
}

func (c *Context) resolveAddress() (*url.URL, error) {
	raw := strings.TrimSpace(c.cfg.URL)
	if raw == "" {
		return nil, &ConfigurationError{Field: "url", Err: errors.New("not set")}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &ConfigurationError{Field: "url", Err: err}
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, &ConfigurationError{Field: "url", Err: fmt.Errorf("%q is not an absolute URL", raw)}
	}
	return u, nil
}

// Directory returns the instance's application directory. Its existence is not
// checked here.
func (c *Context) Directory() (Directory, error) {
	return c.directory.get(c.resolveDirectory)
}

func (c *Context) resolveDirectory() (Directory, error) {
	raw := strings.TrimSpace(c.cfg.Path)
	if raw == "" {
		return Directory{}, &ConfigurationError{Field: "path", Err: errors.New("not set")}
	}
	abs, err := filepath.Abs(raw)
	if err != nil {
		return Directory{}, &ConfigurationError{Field: "path", Err: err}
	}
	return Directory{root: abs}, nil
}

// DB returns the data-access surface. The connection is made by the first query.
func (c *Context) DB() (data.Executor, error) {
	return c.db.get(func() (data.Executor, error) {
		db, err := c.open(c.cfg.Database, c.dataOpts)
		if err != nil {
			return nil, err
		}
		if db == nil {
			return nil, &data.ConnectionError{Driver: c.cfg.Database.Kind(), Err: errors.New("opener returned no database")}
		}
		return db, nil
	})
}

// Version returns the instance version read from the database. Only the first
// caller's ctx governs the lookup; later callers share its outcome.
func (c *Context) Version(ctx context.Context) (version.Version, error) {
	return c.version.get(func() (v version.Version, err error) {
		defer func() {
			if p := recover(); p != nil {
				v, err = version.Version{}, &VersionResolutionError{Err: fmt.Errorf("panic during resolution: %v", p)}
			}
		}()
		return c.resolveVersion(ctx)
	})
}

func (c *Context) resolveVersion(ctx context.Context) (version.Version, error) {
	db, err := c.DB()
	if err != nil {
		return version.Version{}, &VersionResolutionError{Err: err}
	}

	raw, err := db.Scalar(ctx, c.versionQuery)
	switch {
	case errors.Is(err, data.ErrNoRows):
		return version.Version{}, &VersionResolutionError{Err: ErrVersionNotSet}
	case err != nil:
		return version.Version{}, &VersionResolutionError{Err: err}
	case raw == nil:
		return version.Version{}, &VersionResolutionError{Err: ErrVersionNotSet}
	}

	s, err := data.Coerce[string](raw)
	if err != nil {
		return version.Version{}, &VersionResolutionError{Err: err}
	}
	v, err := version.Parse(s)
	if err != nil {
		return version.Version{}, &VersionResolutionError{Raw: s, Err: err}
	}
	c.logger.Debug("instance version resolved", logging.KeyVersion, v.String())
	return v, nil
}

// QueryCount returns the number of statements sent so far, or 0 when the database
// was never opened.
func (c *Context) QueryCount() int64 {
	db, ok, err := c.db.peek()
	if !ok || err != nil {
		return 0
	}
	if counter, ok := db.(data.Counter); ok {
		return counter.QueryCount()
	}
	return 0
}

// Facts is a snapshot of what has been resolved so far.
type Facts struct {
	URL       string            `json:"url,omitempty" yaml:"url,omitempty"`
	Directory string            `json:"directory,omitempty" yaml:"directory,omitempty"`
	Version   string            `json:"version,omitempty" yaml:"version,omitempty"`
	Errors    map[string]string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Facts reports resolved facts without resolving anything itself.
func (c *Context) Facts() Facts {
	var f Facts
	fail := func(name string, err error) {
		if f.Errors == nil {
			f.Errors = make(map[string]string)
		}
		f.Errors[name] = err.Error()
	}

	if u, ok, err := c.address.peek(); ok {
		if err != nil {
			fail("url", err)
		} else {
			f.URL = u.String()
		}
	}
	if d, ok, err := c.directory.peek(); ok {
		if err != nil {
			fail("directory", err)
		} else {
			f.Directory = d.Root()
		}
	}
	if v, ok, err := c.version.peek(); ok {
		if err != nil {
			fail("version", err)
		} else {
			f.Version = v.String()
		}
	}
	return f
}

// Close releases the database connection if one was opened.
func (c *Context) Close() error {
	db, ok, err := c.db.peek()
	if !ok || err != nil {
		return nil
	}
	return db.Close()
}
