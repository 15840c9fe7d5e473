package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CareChat/model"
)

var (
	alice = model.Reactor{UserID: "u1", UserName: "Alice"}
	bob   = model.Reactor{UserID: "u2", UserName: "Bob"}
)

func TestLedgerAddIsIdempotent(t *testing.T) {
	l := NewLedger()
	l.Add("m1", "👍", alice)
	l.Add("m1", "👍", alice)

	got := l.Reactions("m1")
	require.Len(t, got["👍"], 1)
	assert.True(t, l.Has("m1", "👍", "u1"))
}

func TestLedgerRemoveAbsentIsNoop(t *testing.T) {
	l := NewLedger()
	l.Remove("m1", "👍", "u1")
	assert.Empty(t, l.Reactions("m1"))
}

func TestLedgerLocalWinsOverSnapshot(t *testing.T) {
	l := NewLedger()
	l.Seed("m1", model.ReactionSnapshot{"👍": {alice, bob}})

	l.Remove("m1", "👍", "u1")

	got := l.Reactions("m1")
	require.Len(t, got["👍"], 1)
	assert.Equal(t, "u2", got["👍"][0].UserID)
	assert.False(t, l.Has("m1", "👍", "u1"))
	assert.True(t, l.Has("m1", "👍", "u2"))
}

func TestLedgerEmptiedSnapshotKeyStaysHidden(t *testing.T) {
	l := NewLedger()
	l.Seed("m1", model.ReactionSnapshot{"❤️": {alice}})

	l.Remove("m1", "❤️", "u1")

	// The snapshot still holds alice, but the local tombstone shadows it.
	got := l.Reactions("m1")
	_, present := got["❤️"]
	assert.False(t, present)
	assert.False(t, l.Has("m1", "❤️", "u1"))
}

func TestLedgerSeedRunsOncePerMessage(t *testing.T) {
	l := NewLedger()
	l.Seed("m1", model.ReactionSnapshot{"👍": {alice}})
	l.Remove("m1", "👍", "u1")

	// A re-delivered snapshot must not resurrect the removed reaction.
	l.Seed("m1", model.ReactionSnapshot{"👍": {alice}})
	assert.False(t, l.Has("m1", "👍", "u1"))
	assert.True(t, l.Seeded("m1"))
}

func TestLedgerSnapshotAndLocalMergePerKey(t *testing.T) {
	l := NewLedger()
	l.Seed("m1", model.ReactionSnapshot{"👍": {alice}, "🎉": {bob}})

	// Touching 👍 copies alice into the local layer first.
	l.Add("m1", "👍", bob)

	got := l.Reactions("m1")
	require.Len(t, got["👍"], 2)
	require.Len(t, got["🎉"], 1)
	assert.Equal(t, "u2", got["🎉"][0].UserID)
}

func TestLedgerResetClearsEverything(t *testing.T) {
	l := NewLedger()
	l.Seed("m1", model.ReactionSnapshot{"👍": {alice}})
	l.Add("m2", "🎉", bob)

	l.Reset()

	assert.Empty(t, l.Reactions("m1"))
	assert.Empty(t, l.Reactions("m2"))
	assert.False(t, l.Seeded("m1"))
}

func TestLedgerReactionsReturnsCopies(t *testing.T) {
	l := NewLedger()
	l.Add("m1", "👍", alice)

	got := l.Reactions("m1")
	got["👍"][0].UserID = "mangled"

	again := l.Reactions("m1")
	assert.Equal(t, "u1", again["👍"][0].UserID)
}
