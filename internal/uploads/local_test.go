package uploads

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSource_SaveOpenDelete(t *testing.T) {
	ctx := context.Background()
	src, err := NewLocalSource(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, src.Save(ctx, "a.csv", strings.NewReader("title,type\n")))

	rc, err := src.Open(ctx, "a.csv")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "title,type\n", string(data))

	require.NoError(t, src.Delete(ctx, "a.csv"))
	_, err = src.Open(ctx, "a.csv")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
	assert.ErrorIs(t, src.Delete(ctx, "a.csv"), ErrNotFound)
}

func TestLocalSource_RejectsTraversal(t *testing.T) {
	src, err := NewLocalSource(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "..", "../x.csv", "dir/x.csv"} {
		_, err := src.Open(context.Background(), name)
		assert.Error(t, err, "name %q", name)
	}
}

func TestNewName(t *testing.T) {
	name := NewName("../../etc/statement.csv")
	assert.True(t, strings.HasSuffix(name, "-statement.csv"), name)
	assert.NotContains(t, name, "/")
	assert.NotEqual(t, NewName("a.csv"), NewName("a.csv"))
	assert.True(t, strings.HasSuffix(NewName(""), "-upload.csv"))
}

func TestIsLocal(t *testing.T) {
	assert.True(t, isLocal("http://127.0.0.1:10000/devstoreaccount1"))
	assert.False(t, isLocal("https://acct.blob.core.windows.net/"))
}
