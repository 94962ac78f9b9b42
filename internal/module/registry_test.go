package module

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/inspector/internal/instance"
	"github.com/steveyegge/inspector/internal/version"
)

// mockModule is a minimal module for registry tests.
type mockModule struct {
	meta    Metadata
	runFunc func(ctx context.Context, inst *instance.Context) (any, error)
}

func (m *mockModule) Describe() Metadata { return m.meta }

func (m *mockModule) Run(ctx context.Context, inst *instance.Context) (any, error) {
	if m.runFunc != nil {
		return m.runFunc(ctx, inst)
	}
	return nil, nil
}

// brokenModule panics when asked for its metadata.
type brokenModule struct{}

func (brokenModule) Describe() Metadata { panic("metadata table not loaded") }

func (brokenModule) Run(context.Context, *instance.Context) (any, error) { return nil, nil }

func mod(category, name string, ranges ...version.Range) *mockModule {
	return &mockModule{meta: Metadata{Name: name, Category: category, Compatibility: ranges}}
}

func names(modules []Module) []string {
	out := make([]string, len(modules))
	for i, m := range modules {
		out[i] = m.Describe().Name
	}
	return out
}

func TestRegister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(mod("Setup", "Sites")))
	assert.Equal(t, 1, r.Len())

	m, ok := r.Get("Sites")
	require.True(t, ok)
	assert.Equal(t, "Setup", m.Describe().Category)

	_, ok = r.Get("sites")
	assert.False(t, ok, "lookups are exact")
}

func TestRegisterRejects(t *testing.T) {
	tests := []struct {
		name string
		m    Module
	}{
		{name: "nil module", m: nil},
		{name: "empty name", m: mod("Setup", "  ")},
		{name: "inverted range", m: mod("Setup", "Backwards", version.Between("9.0", "8.0"))},
		{name: "describe panics", m: brokenModule{}},
		{name: "typed nil", m: (*mockModule)(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			assert.Error(t, r.Register(tt.m))
			assert.Equal(t, 0, r.Len())
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(mod("Setup", "Sites")))

	err := r.Register(mod("Health", "Sites"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	m, _ := r.Get("Sites")
	assert.Equal(t, "Setup", m.Describe().Category, "first registration wins")
}

func TestAllOrdering(t *testing.T) {
	r := NewRegistry()
	for _, m := range []Module{
		mod("setup", "beta"),
		mod("Health", "Zeta"),
		mod("Setup", "Alpha"),
		mod("Health", "alpha"),
		mod("Health", "Alpha"),
	} {
		require.NoError(t, r.Register(m))
	}

	assert.Equal(t, []string{"Alpha", "alpha", "Zeta", "Alpha", "beta"}, names(r.All()))
}

func TestListCompatible(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(mod("Health", "Ranged", version.Between("8.0", "8.2"))))
	require.NoError(t, r.Register(mod("General", "Wildcard")))
	require.NoError(t, r.Register(mod("Setup", "Discrete",
		version.Exact("8.0"), version.Exact("8.1"), version.Exact("8.2"))))
	require.NoError(t, r.Register(mod("Health", "Modern", version.AtLeast("13.0"))))

	tests := []struct {
		version string
		want    []string
	}{
		{version: "8.1", want: []string{"Wildcard", "Ranged", "Discrete"}},
		{version: "8.1.14", want: []string{"Wildcard", "Ranged", "Discrete"}},
		{version: "8.2.3", want: []string{"Wildcard", "Ranged", "Discrete"}},
		{version: "9.0", want: []string{"Wildcard"}},
		{version: "7.0", want: []string{"Wildcard"}},
		{version: "13.0.5", want: []string{"Wildcard", "Modern"}},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			got := r.ListCompatible(version.MustParse(tt.version))
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestListCompatibleEmptyRegistry(t *testing.T) {
	assert.Empty(t, NewRegistry().ListCompatible(version.MustParse("8.1")))
}

func TestPartition(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(mod("Setup", "Patch pinned", version.Exact("8.1.3"))))
	require.NoError(t, r.Register(mod("Setup", "Far away", version.Between("10.0", "12.0"))))
	require.NoError(t, r.Register(mod("General", "Wildcard")))

	compatible, excluded := r.Partition(version.MustParse("8.1.4"))
	assert.Equal(t, []string{"Wildcard"}, names(compatible))
	require.Len(t, excluded, 2)

	assert.Equal(t, "Far away", excluded[0].Metadata.Name)
	assert.False(t, excluded[0].NearMiss)
	assert.Equal(t, "Patch pinned", excluded[1].Metadata.Name)
	assert.True(t, excluded[1].NearMiss)
}

func TestRegistryKeepsRegisteredMetadata(t *testing.T) {
	r := NewRegistry()
	m := mod("Setup", "Sites", version.Exact("8.1"))
	require.NoError(t, r.Register(m))

	m.meta.Compatibility = nil
	compatible, excluded := r.Partition(version.MustParse("9.0"))
	assert.Empty(t, compatible)
	require.Len(t, excluded, 1)
	assert.Equal(t, "Sites", excluded[0].Metadata.Name)
}

func TestDescribe(t *testing.T) {
	meta, err := Describe(mod("Setup", "Sites"))
	require.NoError(t, err)
	assert.Equal(t, "Sites", meta.Name)

	meta, err = Describe(brokenModule{})
	var dErr *DescribeError
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, "metadata table not loaded", dErr.Panic)
	assert.NotEmpty(t, dErr.Stack)
	assert.Equal(t, "module.brokenModule", meta.Name)
	assert.Equal(t, "module.brokenModule", dErr.Module)
}

func TestPartitionKeepsUndescribableModules(t *testing.T) {
	modules := []Module{mod("Setup", "Pinned", version.Exact("8.0")), brokenModule{}}
	compatible, excluded := Partition(modules, version.MustParse("9.0"))
	require.Len(t, compatible, 1)
	assert.Equal(t, brokenModule{}, compatible[0])
	require.Len(t, excluded, 1)
	assert.Equal(t, "Pinned", excluded[0].Metadata.Name)

	assert.NotPanics(t, func() { Sort(modules) })
}

func TestSelect(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(mod("Setup", "Sites")))
	require.NoError(t, r.Register(mod("Health", "Events")))
	require.NoError(t, r.Register(mod("General", "Summary")))

	got, err := r.Select([]string{"Sites", "Summary", "Sites"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Summary", "Sites"}, names(got))

	_, err = r.Select([]string{"Sites", "Nope"})
	assert.ErrorIs(t, err, ErrUnknownModule)
	assert.Contains(t, err.Error(), "Nope")
}

func TestMetadataSupports(t *testing.T) {
	meta := Metadata{Name: "x", Compatibility: []version.Range{version.Between("8.0", "8.2")}}
	assert.True(t, meta.Supports(version.MustParse("8.1")))
	assert.False(t, meta.Supports(version.MustParse("9.0")))
	assert.False(t, meta.Supports(version.Version{}))
	assert.True(t, Metadata{Name: "any"}.Supports(version.MustParse("1.0")))
}

func TestStateTerminal(t *testing.T) {
	assert.False(t, StatePending.Terminal())
	assert.False(t, StateRunning.Terminal())
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.True(t, StateSkipped.Terminal())
}

func TestFindings(t *testing.T) {
	var none Findings
	assert.Equal(t, Severity(""), none.Worst())

	f := Findings{
		{Severity: SeverityInfo, Subject: "a"},
		{Severity: SeverityWarning, Subject: "b"},
		{Severity: SeverityWarning, Subject: "c"},
	}
	assert.Equal(t, 2, f.Count(SeverityWarning))
	assert.Equal(t, SeverityWarning, f.Worst())
}
