package mvcc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faucetdb/rolekeeper/internal/model"
)

func TestCheckVersionMatch(t *testing.T) {
	rec := &model.Admin{ID: 1, Version: 3}
	assert.NoError(t, CheckVersion(rec, 3))
}

func TestCheckVersionMismatch(t *testing.T) {
	rec := &model.Admin{ID: 1, Name: "Alice", Version: 4, Permissions: model.PermissionSet{"reports.view"}}

	for _, client := range []int64{0, 3, 5} {
		err := CheckVersion(rec, client)
		require.Error(t, err)

		var conflict *ConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, client, conflict.ClientVersion)
		assert.Equal(t, int64(4), conflict.Current.Version)
		assert.Equal(t, "Alice", conflict.Current.Name)
		assert.Contains(t, err.Error(), "concurrent modification")
	}
}

func TestConflictCarriesCopy(t *testing.T) {
	rec := &model.Admin{ID: 1, Version: 2, Permissions: model.PermissionSet{"a"}}
	var conflict *ConflictError
	require.True(t, errors.As(CheckVersion(rec, 1), &conflict))

	conflict.Current.Permissions[0] = "b"
	assert.Equal(t, "a", rec.Permissions[0])
}

func TestNextVersion(t *testing.T) {
	assert.Equal(t, int64(1), NextVersion(0))
	assert.Equal(t, int64(42), NextVersion(41))
}
