package scripts

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/inspector/internal/data"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		ref    string
		want   string
		wantOK bool
	}{
		{ref: "Setup/SitesOverview", want: "Setup/SitesOverview.sql", wantOK: true},
		{ref: `Setup\SitesOverview`, want: "Setup/SitesOverview.sql", wantOK: true},
		{ref: "Setup/SitesOverview.sql", want: "Setup/SitesOverview.sql", wantOK: true},
		{ref: " /Health/EventLogErrors ", want: "Health/EventLogErrors.sql", wantOK: true},
		{ref: "", wantOK: false},
		{ref: "../etc/passwd", wantOK: false},
		{ref: "Setup/../../x", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, ok := Normalize(tt.ref)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestEmbeddedScripts(t *testing.T) {
	store := Embedded()

	for _, ref := range []string{
		"Setup/SitesOverview",
		"Configuration/DebugSettings",
		"Health/EventLogErrors",
		"Health/ScheduledTaskFailures",
	} {
		text, err := store.LoadScript(ref)
		require.NoError(t, err, ref)
		assert.Contains(t, text, "SELECT", ref)
	}

	refs, err := store.Refs()
	require.NoError(t, err)
	assert.Contains(t, refs, "Setup/SitesOverview")
	assert.Len(t, refs, 4)
}

func TestLoadScriptNotFound(t *testing.T) {
	store := FS(fstest.MapFS{
		"Setup/Empty.sql": &fstest.MapFile{Data: []byte("  \n")},
	})

	for _, ref := range []string{"Setup/Missing", "../outside", "Setup/Empty"} {
		_, err := store.LoadScript(ref)
		var notFound *data.ScriptNotFoundError
		require.ErrorAs(t, err, &notFound, ref)
		assert.Equal(t, ref, notFound.Ref)
	}
}

func TestLayeredOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Setup"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Setup", "SitesOverview.sql"),
		[]byte("SELECT 42"), 0o644))

	loader := Default(dir)

	text, err := loader.LoadScript("Setup/SitesOverview")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 42", text)

	// Falls through to the embedded copy.
	text, err = loader.LoadScript("Health/EventLogErrors")
	require.NoError(t, err)
	assert.Contains(t, text, "CMS_EventLog")

	_, err = loader.LoadScript("Health/Nope")
	var notFound *data.ScriptNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestLayeredEmpty(t *testing.T) {
	_, err := Layered{nil}.LoadScript("Setup/Anything")
	var notFound *data.ScriptNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Setup/Anything", notFound.Ref)
}

func TestDefaultWithoutDir(t *testing.T) {
	_, ok := Default("").(*Store)
	assert.True(t, ok)
}
