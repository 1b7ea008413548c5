package lsp

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memFS(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.Nil(t, afero.WriteFile(fs, path, []byte(content), 0644))
	}
	return fs
}

func TestStore(t *testing.T) {
	fs := memFS(t, map[string]string{"/src/main.cpp": "int main() {}\n"})
	store := NewStore(fs)

	t.Run("loads once", func(t *testing.T) {
		doc, err := store.Get("/src/main.cpp")
		require.Nil(t, err)
		assert.Equal(t, "/src/main.cpp", doc.Path)
		assert.Equal(t, "file:///src/main.cpp", doc.URI)
		assert.Equal(t, 1, doc.Version())
		assert.Equal(t, "int main() {}\n", doc.Content())

		again, err := store.Get("/src/../src/main.cpp")
		require.Nil(t, err)
		assert.Same(t, doc, again)
	})

	t.Run("update bumps version", func(t *testing.T) {
		doc, _ := store.Get("/src/main.cpp")
		doc.Update("int main() { return 0; }\n")
		version, content := doc.Snapshot()
		assert.Equal(t, 2, version)
		assert.Equal(t, "int main() { return 0; }\n", content)
	})

	t.Run("reload only on change", func(t *testing.T) {
		doc, _ := store.Get("/src/main.cpp")
		require.Nil(t, afero.WriteFile(fs, "/src/main.cpp", []byte(doc.Content()), 0644))
		changed, err := doc.Reload()
		require.Nil(t, err)
		assert.False(t, changed)
		assert.Equal(t, 2, doc.Version())

		require.Nil(t, afero.WriteFile(fs, "/src/main.cpp", []byte("// edited\n"), 0644))
		changed, err = doc.Reload()
		require.Nil(t, err)
		assert.True(t, changed)
		assert.Equal(t, 3, doc.Version())
		assert.Equal(t, "// edited\n", doc.Content())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := store.Get("/src/nope.cpp")
		assert.NotNil(t, err)
		_, ok := store.Lookup("/src/nope.cpp")
		assert.False(t, ok)
	})

	t.Run("forget", func(t *testing.T) {
		_, ok := store.Lookup("/src/main.cpp")
		require.True(t, ok)
		store.Forget("/src/main.cpp")
		_, ok = store.Lookup("/src/main.cpp")
		assert.False(t, ok)
	})
}

func TestSupports(t *testing.T) {
	assert.False(t, Supports(nil))
	assert.False(t, Supports(false))
	assert.True(t, Supports(true))
	assert.True(t, Supports(map[string]interface{}{}))
}
