package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/applypilot/applypilot/internal/storage"
)

func sampleApp() *storage.Application {
	return &storage.Application{
		JobID:        "deadbeef01234567",
		Company:      "Acme Corp",
		RoleCategory: "Backend Engineer",
		Files: map[string][]byte{
			"resume.docx":       []byte("resume bytes"),
			"cover_letter.docx": []byte("cover bytes"),
		},
	}
}

func TestSaveWritesAllFiles(t *testing.T) {
	root := t.TempDir()
	store, err := New(root, zap.NewNop())
	require.NoError(t, err)

	loc, err := store.Save(context.Background(), sampleApp())
	require.NoError(t, err)

	expectedDir := filepath.Join(root, "Acme-Corp_Backend-Engineer_deadbeef01234567")
	assert.Equal(t, expectedDir, loc.Path)
	assert.Equal(t, "local", loc.Backend)
	assert.Equal(t, []string{"cover_letter.docx", "resume.docx"}, loc.Files)

	data, err := os.ReadFile(filepath.Join(expectedDir, "resume.docx"))
	require.NoError(t, err)
	assert.Equal(t, "resume bytes", string(data))

	data, err = os.ReadFile(filepath.Join(expectedDir, "cover_letter.docx"))
	require.NoError(t, err)
	assert.Equal(t, "cover bytes", string(data))
}

func TestSaveOverwritesInPlace(t *testing.T) {
	root := t.TempDir()
	store, err := New(root, zap.NewNop())
	require.NoError(t, err)

	app := sampleApp()
	_, err = store.Save(context.Background(), app)
	require.NoError(t, err)

	app.Files["resume.docx"] = []byte("updated resume")
	loc, err := store.Save(context.Background(), app)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(loc.Path, "resume.docx"))
	require.NoError(t, err)
	assert.Equal(t, "updated resume", string(data))

	entries, err := os.ReadDir(filepath.Join(root))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "repeat save must not create a second folder")
}

func TestSaveRejectsEmptyApplication(t *testing.T) {
	store, err := New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	_, err = store.Save(context.Background(), &storage.Application{JobID: "x"})
	assert.Error(t, err)
}

func TestContainerKeySanitizes(t *testing.T) {
	key := storage.ContainerKey(&storage.Application{
		JobID:        "abc",
		Company:      "Weird/Name: Inc?",
		RoleCategory: "",
	})
	assert.Equal(t, "Weird-Name-Inc_unknown_abc", key)
}
