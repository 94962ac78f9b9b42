package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapLoader serves scripts from memory.
type mapLoader map[string]string

func (m mapLoader) LoadScript(ref string) (string, error) {
	text, ok := m[ref]
	if !ok {
		return "", &ScriptNotFoundError{Ref: ref}
	}
	return text, nil
}

type failingLoader struct{}

func (failingLoader) LoadScript(ref string) (string, error) {
	return "", errors.New("permission denied")
}

// newTestDB creates a SQLite database with a small settings table.
func newTestDB(t *testing.T, opts Options) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cms.db")

	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = raw.Exec(`
		CREATE TABLE CMS_SettingsKey (KeyName TEXT NOT NULL, KeyValue TEXT);
		INSERT INTO CMS_SettingsKey (KeyName, KeyValue) VALUES
			('CMSDBVersion', '8.1'),
			('CMSDebugEverything', 'True'),
			('CMSMaxItems', '25'),
			('CMSEmpty', NULL);
	`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	db, err := Open(Config{Driver: DriverSQLite, Name: path}, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle", DSN: "x"}, Options{})
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestOpenDoesNotConnect(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no", "such", "dir", "cms.db")

	db, err := Open(Config{Driver: DriverSQLite, Name: missing}, Options{})
	require.NoError(t, err, "Open must not touch the database")
	defer db.Close()
	assert.Equal(t, int64(0), db.QueryCount())

	_, err = db.Scalar(context.Background(), "SELECT 1")
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, DriverSQLite, connErr.Driver)

	// No implicit retry: the failure is reported again without a new attempt.
	_, err = db.Query(context.Background(), "SELECT 1")
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, int64(0), db.QueryCount())
}

func TestScalar(t *testing.T) {
	db := newTestDB(t, Options{})
	ctx := context.Background()

	v, err := db.Scalar(ctx, "SELECT KeyValue FROM CMS_SettingsKey WHERE KeyName = 'CMSDBVersion'")
	require.NoError(t, err)
	assert.Equal(t, "8.1", v)

	_, err = db.Scalar(ctx, "SELECT KeyValue FROM CMS_SettingsKey WHERE KeyName = 'Missing'")
	assert.ErrorIs(t, err, ErrNoRows)

	v, err = db.Scalar(ctx, "SELECT KeyValue FROM CMS_SettingsKey WHERE KeyName = ?", "CMSEmpty")
	require.NoError(t, err)
	assert.Nil(t, v)

	assert.Equal(t, int64(3), db.QueryCount())
}

func TestQueryExecutionError(t *testing.T) {
	db := newTestDB(t, Options{})

	_, err := db.Query(context.Background(), "SELECT * FROM NoSuchTable")
	var qErr *QueryExecutionError
	require.ErrorAs(t, err, &qErr)
	assert.Equal(t, "SELECT * FROM NoSuchTable", qErr.Query)
	assert.NotNil(t, qErr.Unwrap())

	_, err = db.Scalar(context.Background(), "SELEC nonsense")
	require.ErrorAs(t, err, &qErr)
}

func TestQueryCancelledContext(t *testing.T) {
	db := newTestDB(t, Options{})

	// Establish the connection first so the failure is attributed to the query.
	_, err := db.Scalar(context.Background(), "SELECT 1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = db.Query(ctx, "SELECT * FROM CMS_SettingsKey")
	var qErr *QueryExecutionError
	require.ErrorAs(t, err, &qErr)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScalarAs(t *testing.T) {
	db := newTestDB(t, Options{})
	ctx := context.Background()

	n, err := ScalarAs[int](ctx, db, "SELECT COUNT(*) FROM CMS_SettingsKey")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	maxItems, err := ScalarAs[int64](ctx, db, "SELECT KeyValue FROM CMS_SettingsKey WHERE KeyName = 'CMSMaxItems'")
	require.NoError(t, err)
	assert.Equal(t, int64(25), maxItems)

	on, err := ScalarAs[bool](ctx, db, "SELECT KeyValue FROM CMS_SettingsKey WHERE KeyName = 'CMSDebugEverything'")
	require.NoError(t, err)
	assert.True(t, on)

	_, err = ScalarAs[int](ctx, db, "SELECT KeyValue FROM CMS_SettingsKey WHERE KeyName = 'CMSDBVersion'")
	var coerceErr *TypeCoercionError
	require.ErrorAs(t, err, &coerceErr)
	assert.Equal(t, "int", coerceErr.Target)

	_, err = ScalarAs[string](ctx, db, "SELECT KeyValue FROM CMS_SettingsKey WHERE KeyName = 'CMSEmpty'")
	require.ErrorAs(t, err, &coerceErr)

	_, err = ScalarAs[string](ctx, db, "SELECT KeyValue FROM CMS_SettingsKey WHERE KeyName = 'Missing'")
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestQuery(t *testing.T) {
	db := newTestDB(t, Options{})

	table, err := db.Query(context.Background(),
		"SELECT KeyName, KeyValue FROM CMS_SettingsKey WHERE KeyValue IS NOT NULL ORDER BY KeyName")
	require.NoError(t, err)

	assert.Equal(t, []string{"KeyName", "KeyValue"}, table.Columns)
	require.Equal(t, 3, table.Len())
	assert.Equal(t, []any{"CMSDBVersion", "8.1"}, table.Rows[0])

	v, ok := table.Value(2, "KeyValue")
	assert.True(t, ok)
	assert.Equal(t, "25", v)

	_, ok = table.Value(0, "Nope")
	assert.False(t, ok)

	records := table.Records()
	assert.Equal(t, "True", records[1]["KeyValue"])
}

func TestQueryEmptyResult(t *testing.T) {
	db := newTestDB(t, Options{})

	table, err := db.Query(context.Background(), "SELECT KeyName FROM CMS_SettingsKey WHERE 1 = 0")
	require.NoError(t, err)
	assert.Equal(t, []string{"KeyName"}, table.Columns)
	assert.Equal(t, 0, table.Len())
	assert.NotNil(t, table.Rows)
}

func TestScripts(t *testing.T) {
	loader := mapLoader{
		"Setup/Settings": "SELECT KeyName FROM CMS_SettingsKey ORDER BY KeyName",
		"Setup/Count":    "SELECT COUNT(*) FROM CMS_SettingsKey",
	}
	db := newTestDB(t, Options{Scripts: loader})
	ctx := context.Background()

	set, err := db.ScriptQuery(ctx, "Setup/Settings")
	require.NoError(t, err)
	require.Len(t, set, 1)
	assert.Equal(t, 4, set.First().Len())

	n, err := ScriptScalarAs[int](ctx, db, "Setup/Count")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = db.ScriptQuery(ctx, "Setup/Missing")
	var notFound *ScriptNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Setup/Missing", notFound.Ref)
}

func TestScriptsWithoutStore(t *testing.T) {
	db := newTestDB(t, Options{})

	_, err := db.ScriptQuery(context.Background(), "Setup/Settings")
	var notFound *ScriptNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, int64(0), db.QueryCount())
}

func TestScriptLoaderErrorIsNotFound(t *testing.T) {
	db := newTestDB(t, Options{Scripts: failingLoader{}})

	_, err := db.ScriptScalar(context.Background(), "Setup/Any")
	var notFound *ScriptNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestConcurrentQueriesShareConnection(t *testing.T) {
	db := newTestDB(t, Options{})
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			table, err := db.Query(ctx, "SELECT KeyName, KeyValue FROM CMS_SettingsKey ORDER BY KeyName")
			if err != nil {
				errs <- err
				return
			}
			if table.Len() != 4 {
				errs <- fmt.Errorf("worker %d: got %d rows", i, table.Len())
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	assert.Equal(t, int64(workers), db.QueryCount())
}

func TestRateLimitHonoursContext(t *testing.T) {
	db := newTestDB(t, Options{QueriesPerSecond: 0.001, Burst: 1})

	_, err := db.Scalar(context.Background(), "SELECT 1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = db.Scalar(ctx, "SELECT 1")
	var qErr *QueryExecutionError
	require.ErrorAs(t, err, &qErr)
	assert.Equal(t, int64(1), db.QueryCount())
}
