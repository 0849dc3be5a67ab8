package main

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runixer/grabber/internal/storage"
	"github.com/runixer/grabber/internal/testutil"
	"github.com/runixer/grabber/internal/workspace"
)

func TestPurge(t *testing.T) {
	env := testutil.NewTestBot(t, nil)
	store := env.Store()
	require.NoError(t, store.UpsertUser(testutil.TestUser()))
	require.NoError(t, store.RecordDelivery(testutil.TestDelivery()))

	ws := workspace.New(t.TempDir(), env.Logger())
	_, err := ws.Ensure(testutil.TestUserID)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(ws.ThumbnailPath(testutil.TestUserID), []byte("jpeg"), 0o644))

	var out bytes.Buffer
	require.NoError(t, purge(&out, store, ws, testutil.TestUserID))
	assert.Contains(t, out.String(), "Purging data for user")

	user, err := store.GetUser(testutil.TestUserID)
	assert.NoError(t, err)
	assert.Nil(t, user)
	testutil.AssertDeliveryCount(t, store, testutil.TestUserID, 0)
	assert.NoDirExists(t, ws.UserDir(testutil.TestUserID))
}

func TestPurge_UnknownUserRemovesFiles(t *testing.T) {
	env := testutil.NewTestBot(t, nil)
	ws := workspace.New(t.TempDir(), env.Logger())
	_, err := ws.Ensure(testutil.TestUserID)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, purge(&out, env.Store(), ws, testutil.TestUserID))
	assert.Contains(t, out.String(), "not in the database")
	assert.NoDirExists(t, ws.UserDir(testutil.TestUserID))
}

func TestPurge_StorageError(t *testing.T) {
	t.Run("lookup", func(t *testing.T) {
		store := new(testutil.MockStorage)
		store.On("GetUser", testutil.TestUserID).Return(nil, errors.New("disk I/O error"))
		ws := workspace.New(t.TempDir(), testutil.TestLogger())
		_, err := ws.Ensure(testutil.TestUserID)
		require.NoError(t, err)

		err = purge(&bytes.Buffer{}, store, ws, testutil.TestUserID)
		assert.ErrorContains(t, err, "disk I/O error")
		assert.DirExists(t, ws.UserDir(testutil.TestUserID))
		store.AssertExpectations(t)
	})

	t.Run("purge", func(t *testing.T) {
		store := new(testutil.MockStorage)
		store.On("GetUser", testutil.TestUserID).Return(&storage.User{ID: testutil.TestUserID, Username: "tester"}, nil)
		store.On("PurgeUser", testutil.TestUserID).Return(errors.New("locked"))
		ws := workspace.New(t.TempDir(), testutil.TestLogger())

		err := purge(&bytes.Buffer{}, store, ws, testutil.TestUserID)
		assert.ErrorContains(t, err, "locked")
		store.AssertExpectations(t)
	})
}

func TestDescribeUser(t *testing.T) {
	assert.Equal(t, "Ann Lee @ann", describeUser(&storage.User{FirstName: "Ann", LastName: "Lee", Username: "ann"}))
	assert.Equal(t, "@ann", describeUser(&storage.User{Username: "ann"}))
	assert.Equal(t, "no name", describeUser(&storage.User{}))
}
