package roomsync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/roomsync/internal/models"
)

var (
	general = models.Room{ID: "c1", Kind: models.RoomKindPublic, Name: "general"}
	ops     = models.Room{ID: "p1", Kind: models.RoomKindPrivate, Name: "Ops"}
	dmBob   = models.Room{ID: "d1", Kind: models.RoomKindDirect, Name: "mebob", Usernames: []string{"me", "bob"}}
)

func TestDirectoryKeepsSnapshotOnFailure(t *testing.T) {
	api := newFakeAPI(general, dmBob)
	dir := NewDirectory(api, "me")

	rooms, err := dir.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 2)

	api.mu.Lock()
	api.roomsErr = errBoom
	api.mu.Unlock()

	rooms, err = dir.Load(context.Background())
	require.ErrorIs(t, err, errBoom)
	require.Len(t, rooms, 2)
	require.Len(t, dir.Rooms(), 2)
	require.True(t, dir.Loaded())
}

func TestDirectoryResolveOrRefreshRefreshesOnce(t *testing.T) {
	api := newFakeAPI(general)
	dir := NewDirectory(api, "me")
	_, err := dir.Load(context.Background())
	require.NoError(t, err)

	room, err := dir.ResolveOrRefresh(context.Background(), "c1")
	require.NoError(t, err)
	require.Equal(t, "general", room.Name)
	require.Equal(t, 1, api.roomsCount())

	api.mu.Lock()
	api.rooms = append(api.rooms, ops)
	api.mu.Unlock()

	room, err = dir.ResolveOrRefresh(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, "p1", room.ID)
	require.Equal(t, 2, api.roomsCount())

	_, err = dir.ResolveOrRefresh(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 3, api.roomsCount())
}

func TestDirectoryMatch(t *testing.T) {
	dir := NewDirectory(newFakeAPI(general, ops, dmBob), "me")
	_, err := dir.Load(context.Background())
	require.NoError(t, err)

	cases := map[string]string{
		"c1":       "c1",
		"general":  "c1",
		"#general": "c1",
		"ops":      "p1",
		"@bob":     "d1",
		"bob":      "d1",
	}
	for query, want := range cases {
		room, ok := dir.Match(query)
		require.True(t, ok, query)
		require.Equal(t, want, room.ID, query)
	}
	_, ok := dir.Match("@carol")
	require.False(t, ok)
	_, ok = dir.Match("  ")
	require.False(t, ok)
}

func TestDirectoryKindsAndDefault(t *testing.T) {
	dir := NewDirectory(newFakeAPI(dmBob, general, ops), "me")
	_, err := dir.Load(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"c1", "p1"}, roomIDs(dir.Channels()))
	require.Equal(t, []string{"d1"}, roomIDs(dir.Directs()))

	room, ok := dir.Default(false)
	require.True(t, ok)
	require.Equal(t, "c1", room.ID)

	room, ok = dir.Default(true)
	require.True(t, ok)
	require.Equal(t, "d1", room.ID)

	only := NewDirectory(newFakeAPI(dmBob), "me")
	_, err = only.Load(context.Background())
	require.NoError(t, err)
	room, ok = only.Default(false)
	require.True(t, ok)
	require.Equal(t, "d1", room.ID)

	_, ok = NewDirectory(newFakeAPI(), "me").Default(false)
	require.False(t, ok)
}

func TestDirectoryFindDirect(t *testing.T) {
	dir := NewDirectory(newFakeAPI(general, dmBob), "me")
	_, err := dir.Load(context.Background())
	require.NoError(t, err)

	room, ok := dir.FindDirect("@bob")
	require.True(t, ok)
	require.Equal(t, "d1", room.ID)
	_, ok = dir.FindDirect("general")
	require.False(t, ok)
}

func roomIDs(rooms []models.Room) []string {
	out := make([]string, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.ID)
	}
	return out
}
