package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, r io.ReadCloser) string {
	t.Helper()
	defer r.Close()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(b)
}

// TestLocalArchive 测试本地归档实现
func TestLocalArchive(t *testing.T) {
	ctx := context.Background()
	archive, err := NewLocalArchive(LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)

	csv := "问题,答案\n什么是接口,方法集合\n"

	t.Run("save and open", func(t *testing.T) {
		info, err := archive.Save(ctx, "run-1", strings.NewReader(csv), "notes-llama3-学习卡片.csv")
		require.NoError(t, err)
		assert.Equal(t, "run-1/notes-llama3-学习卡片.csv", info.Key)
		assert.Equal(t, "notes-llama3-学习卡片.csv", info.Name)
		assert.EqualValues(t, len(csv), info.Size)

		got, err := archive.Open(ctx, info.Key)
		require.NoError(t, err)
		assert.Equal(t, csv, readAll(t, got))
	})

	t.Run("same name overwrites", func(t *testing.T) {
		_, err := archive.Save(ctx, "run-1", strings.NewReader("v1"), "a.csv")
		require.NoError(t, err)
		info, err := archive.Save(ctx, "run-1", strings.NewReader("v2-longer"), "a.csv")
		require.NoError(t, err)

		got, err := archive.Open(ctx, info.Key)
		require.NoError(t, err)
		assert.Equal(t, "v2-longer", readAll(t, got))
	})

	t.Run("list scoped to run", func(t *testing.T) {
		_, err := archive.Save(ctx, "run-2", strings.NewReader("x"), "b.csv")
		require.NoError(t, err)

		objects, err := archive.List(ctx, "run-2")
		require.NoError(t, err)
		require.Len(t, objects, 1)
		assert.Equal(t, "run-2/b.csv", objects[0].Key)

		all, err := archive.List(ctx, "")
		require.NoError(t, err)
		assert.Greater(t, len(all), 1)
	})

	t.Run("list unknown run is empty", func(t *testing.T) {
		objects, err := archive.List(ctx, "no-such-run")
		require.NoError(t, err)
		assert.Empty(t, objects)
	})

	t.Run("delete", func(t *testing.T) {
		info, err := archive.Save(ctx, "run-3", strings.NewReader("x"), "c.csv")
		require.NoError(t, err)
		require.NoError(t, archive.Delete(ctx, info.Key))

		_, err = archive.Open(ctx, info.Key)
		assert.Error(t, err)
		assert.Error(t, archive.Delete(ctx, info.Key))
	})

	t.Run("path escape rejected", func(t *testing.T) {
		_, err := archive.Open(ctx, "../outside.csv")
		assert.Error(t, err)
	})

	t.Run("filename stripped to base", func(t *testing.T) {
		info, err := archive.Save(ctx, "run-4", strings.NewReader("x"), "/tmp/evil/../d.csv")
		require.NoError(t, err)
		assert.Equal(t, "run-4/d.csv", info.Key)
	})
}

// TestContentTypeFor 测试内容类型判断
func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "text/csv", contentTypeFor("a-学习卡片.csv"))
	assert.Equal(t, "text/csv", contentTypeFor("UPPER.CSV"))
	assert.Equal(t, "text/markdown", contentTypeFor("notes.md"))
	assert.Equal(t, "application/pdf", contentTypeFor("p.pdf"))
	assert.Equal(t, "application/octet-stream", contentTypeFor("blob"))
}
