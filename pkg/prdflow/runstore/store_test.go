package runstore_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/nir-meir/prd-to-json/pkg/prdflow/runstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactory creates a store instance for testing.
type storeFactory func(t *testing.T) runstore.Store

// storeContractTest runs contract tests against any Store implementation.
func storeContractTest(t *testing.T, name string, factory storeFactory) {
	t.Run(name+"/Save_and_Get", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		run := runstore.NewRun("agent.md", "# Agent\n\nBody")
		run.Strategy = "simple"
		run.Errors = 0
		run.Warnings = 2
		run.Fixes = 1
		run.Duration = 12.5
		run.Document = []byte(`{"metadata": {}}`)

		require.NoError(t, store.Save(run))

		loaded, err := store.Get(run.ID)
		require.NoError(t, err)
		assert.Equal(t, run.ID, loaded.ID)
		assert.Equal(t, "agent.md", loaded.Source)
		assert.Equal(t, run.InputHash, loaded.InputHash)
		assert.Equal(t, "simple", loaded.Strategy)
		assert.Equal(t, 2, loaded.Warnings)
		assert.Equal(t, 1, loaded.Fixes)
		assert.Equal(t, []byte(`{"metadata": {}}`), loaded.Document)
	})

	t.Run(name+"/Get_NotFound", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		_, err := store.Get("nonexistent")
		assert.ErrorIs(t, err, runstore.ErrNotFound)
	})

	t.Run(name+"/Save_Overwrite", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		run := runstore.NewRun("doc.md", "v1")
		run.Strategy = "simple"
		require.NoError(t, store.Save(run))

		run.Strategy = "chunked"
		run.Document = []byte("updated")
		require.NoError(t, store.Save(run))

		loaded, err := store.Get(run.ID)
		require.NoError(t, err)
		assert.Equal(t, "chunked", loaded.Strategy)
		assert.Equal(t, []byte("updated"), loaded.Document)
	})

	t.Run(name+"/List_Empty", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		infos, err := store.List(0)
		require.NoError(t, err)
		assert.Empty(t, infos)
	})

	t.Run(name+"/List_NewestFirst", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		for i, src := range []string{"a.md", "b.md", "c.md"} {
			run := runstore.NewRun(src, src)
			run.CreatedAt = time.Date(2026, 8, 1+i, 0, 0, 0, 0, time.UTC)
			run.Document = []byte(src)
			require.NoError(t, store.Save(run))
		}

		infos, err := store.List(0)
		require.NoError(t, err)
		require.Len(t, infos, 3)

		assert.Equal(t, "c.md", infos[0].Source)
		assert.Equal(t, "b.md", infos[1].Source)
		assert.Equal(t, "a.md", infos[2].Source)
		assert.Equal(t, int64(4), infos[0].Size)
	})

	t.Run(name+"/List_Limit", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		for i := 0; i < 5; i++ {
			run := runstore.NewRun("doc.md", "input")
			run.CreatedAt = time.Date(2026, 8, 1+i, 0, 0, 0, 0, time.UTC)
			require.NoError(t, store.Save(run))
		}

		infos, err := store.List(2)
		require.NoError(t, err)
		assert.Len(t, infos, 2)
	})

	t.Run(name+"/Delete", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		run := runstore.NewRun("doc.md", "input")
		require.NoError(t, store.Save(run))

		require.NoError(t, store.Delete(run.ID))

		_, err := store.Get(run.ID)
		assert.ErrorIs(t, err, runstore.ErrNotFound)

		// Deleting again is a no-op
		assert.NoError(t, store.Delete(run.ID))
	})

	t.Run(name+"/Closed", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.Close())

		err := store.Save(runstore.NewRun("doc.md", "input"))
		assert.ErrorIs(t, err, runstore.ErrStoreClosed)

		_, err = store.Get("any")
		assert.ErrorIs(t, err, runstore.ErrStoreClosed)

		_, err = store.List(0)
		assert.ErrorIs(t, err, runstore.ErrStoreClosed)
	})
}

func TestMemoryStore_Contract(t *testing.T) {
	storeContractTest(t, "memory", func(t *testing.T) runstore.Store {
		return runstore.NewMemoryStore()
	})
}

func TestSQLiteStore_Contract(t *testing.T) {
	storeContractTest(t, "sqlite", func(t *testing.T) runstore.Store {
		store, err := runstore.NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
		require.NoError(t, err)
		return store
	})
}

func TestNewRun(t *testing.T) {
	run := runstore.NewRun("agent.md", "some input")

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "agent.md", run.Source)
	assert.Equal(t, runstore.HashInput("some input"), run.InputHash)
	assert.False(t, run.CreatedAt.IsZero())

	// Distinct runs get distinct ids
	other := runstore.NewRun("agent.md", "some input")
	assert.NotEqual(t, run.ID, other.ID)
	assert.Equal(t, run.InputHash, other.InputHash)
}

func TestHashInput(t *testing.T) {
	assert.Equal(t, runstore.HashInput("abc"), runstore.HashInput("abc"))
	assert.NotEqual(t, runstore.HashInput("abc"), runstore.HashInput("abd"))
	assert.Len(t, runstore.HashInput(""), 64)
}

func TestMemoryStore_Len(t *testing.T) {
	store := runstore.NewMemoryStore()
	defer store.Close()

	assert.Equal(t, 0, store.Len())
	require.NoError(t, store.Save(runstore.NewRun("a.md", "a")))
	require.NoError(t, store.Save(runstore.NewRun("b.md", "b")))
	assert.Equal(t, 2, store.Len())
}

func TestMemoryStore_CopiesDocument(t *testing.T) {
	store := runstore.NewMemoryStore()
	defer store.Close()

	run := runstore.NewRun("a.md", "a")
	run.Document = []byte("original")
	require.NoError(t, store.Save(run))

	run.Document[0] = 'X'

	loaded, err := store.Get(run.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), loaded.Document)
}
