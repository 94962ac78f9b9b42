package data

import (
	"fmt"
	"net/url"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"       // registers "pgx"
	_ "github.com/microsoft/go-mssqldb"      // registers "sqlserver"
	_ "github.com/ncruces/go-sqlite3/driver" // registers "sqlite3"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Supported driver names accepted in Config.Driver.
const (
	DriverSQLServer = "sqlserver"
	DriverPostgres  = "postgres"
	DriverSQLite    = "sqlite"
)

// Config describes how to reach the inspected instance's database.
// Either DSN is given verbatim or it is assembled from the individual parts.
type Config struct {
	Driver   string `mapstructure:"driver" json:"driver" yaml:"driver"`
	DSN      string `mapstructure:"dsn" json:"-" yaml:"-"`
	Server   string `mapstructure:"server" json:"server,omitempty" yaml:"server,omitempty"`
	Name     string `mapstructure:"name" json:"name,omitempty" yaml:"name,omitempty"`
	User     string `mapstructure:"user" json:"user,omitempty" yaml:"user,omitempty"`
	Password string `mapstructure:"password" json:"-" yaml:"-"`
}

// driverName maps a configured driver onto its database/sql registration.
func (c Config) driverName() (string, error) {
	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case "", DriverSQLServer, "mssql":
		return "sqlserver", nil
	case DriverPostgres, "postgresql", "pgx":
		return "pgx", nil
	case DriverSQLite, "sqlite3":
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

// Kind returns the normalized driver kind (one of the Driver constants).
func (c Config) Kind() string {
	name, err := c.driverName()
	if err != nil {
		return c.Driver
	}
	switch name {
	case "pgx":
		return DriverPostgres
	case "sqlite3":
		return DriverSQLite
	default:
		return DriverSQLServer
	}
}

// ConnectionString returns the DSN handed to the driver.
func (c Config) ConnectionString() (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}
	if _, err := c.driverName(); err != nil {
		return "", err
	}

	switch c.Kind() {
	case DriverSQLite:
		if c.Name == "" {
			return "", fmt.Errorf("sqlite database requires a file name")
		}
		return c.Name, nil
	case DriverPostgres:
		if c.Server == "" {
			return "", fmt.Errorf("postgres database requires a server")
		}
		u := url.URL{Scheme: "postgres", Host: c.Server, Path: "/" + c.Name}
		u.User = userInfo(c.User, c.Password)
		return u.String(), nil
	default:
		if c.Server == "" {
			return "", fmt.Errorf("sqlserver database requires a server")
		}
		u := url.URL{Scheme: "sqlserver", Host: c.Server}
		u.User = userInfo(c.User, c.Password)
		q := url.Values{}
		if c.Name != "" {
			q.Set("database", c.Name)
		}
		q.Set("app name", "inspector")
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
}

func userInfo(user, password string) *url.Userinfo {
	switch {
	case user == "":
		return nil
	case password == "":
		return url.User(user)
	default:
		return url.UserPassword(user, password)
	}
}

// Redacted returns a printable description of the target without credentials.
func (c Config) Redacted() string {
	if c.DSN != "" {
		if u, err := url.Parse(c.DSN); err == nil && u.Scheme != "" && u.Host != "" {
			return u.Redacted()
		}
		return c.Kind() + " (dsn)"
	}
	if c.Kind() == DriverSQLite {
		return "sqlite:" + c.Name
	}
	return fmt.Sprintf("%s://%s/%s", c.Kind(), c.Server, c.Name)
}
