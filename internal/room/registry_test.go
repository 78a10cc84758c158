package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryGetOrCreateIsIdempotent(t *testing.T) {
	g := NewRegistry(nil)

	first := g.GetOrCreate("general")
	second := g.GetOrCreate("general")

	assert.Same(t, first.(*Room), second.(*Room))
	assert.Equal(t, 1, g.Count())
	assert.False(t, first.IsAIRoom())
}

func TestRegistryGet(t *testing.T) {
	g := NewRegistry(nil)

	_, ok := g.Get("missing")
	assert.False(t, ok)

	g.GetOrCreate("general")
	r, ok := g.Get("general")
	require.True(t, ok)
	assert.Equal(t, "general", r.Name())
}

func TestRegistrySeedDefaults(t *testing.T) {
	g := NewRegistry(nil)
	g.SeedDefaults()

	assert.Equal(t, []string{"AI", "distributed computation", "parallel computation"}, g.Names())

	ai, ok := g.Get("AI")
	require.True(t, ok)
	assert.True(t, ai.IsAIRoom())

	normal, ok := g.Get("parallel computation")
	require.True(t, ok)
	assert.False(t, normal.IsAIRoom())
}

func TestForceCreateAIRoomOnFreeName(t *testing.T) {
	g := NewRegistry(nil)

	r := g.ForceCreateAIRoom("ai math", DefaultPrompt("ai math"))
	assert.True(t, r.IsAIRoom())
	assert.Equal(t, 1, g.Count())
}

func TestForceCreateAIRoomReplacesEmptyNormalRoom(t *testing.T) {
	g := NewRegistry(nil)

	normal := g.GetOrCreate("ai math")
	require.False(t, normal.IsAIRoom())

	replaced := g.ForceCreateAIRoom("ai math", DefaultPrompt("ai math"))
	assert.True(t, replaced.IsAIRoom())

	// The name now resolves to the AI room, and only the AI room.
	got, ok := g.Get("ai math")
	require.True(t, ok)
	assert.True(t, got.IsAIRoom())
	assert.Equal(t, 1, g.Count())
}

func TestForceCreateAIRoomKeepsOccupiedNormalRoom(t *testing.T) {
	g := NewRegistry(nil)

	normal := g.GetOrCreate("ai math")
	normal.AddMember(newFakeMember("alice"), true)

	kept := g.ForceCreateAIRoom("ai math", DefaultPrompt("ai math"))
	assert.False(t, kept.IsAIRoom())
	assert.Equal(t, 1, kept.MemberCount())
}

func TestForceCreateAIRoomKeepsExistingAIRoom(t *testing.T) {
	g := NewRegistry(nil)

	first := g.ForceCreateAIRoom("ai math", "first prompt")
	second := g.ForceCreateAIRoom("ai math", "second prompt")

	require.True(t, second.IsAIRoom())
	assert.Same(t, first.(*AIRoom), second.(*AIRoom))
	assert.Equal(t, "first prompt", second.(*AIRoom).Prompt())
}

func TestRegistryNamesAreSorted(t *testing.T) {
	g := NewRegistry(nil)
	g.GetOrCreate("zebra")
	g.GetOrCreate("alpha")
	g.GetOrCreate("middle")

	assert.Equal(t, []string{"alpha", "middle", "zebra"}, g.Names())
}

func TestRegistrySnapshot(t *testing.T) {
	g := NewRegistry(nil)
	g.GetOrCreate("general").AddMember(newFakeMember("alice"), true)
	g.ForceCreateAIRoom("ai math", "prompt")

	infos := g.Snapshot()
	require.Len(t, infos, 2)

	assert.Equal(t, "ai math", infos[0].Name)
	assert.Equal(t, "ai", infos[0].Kind)
	assert.Equal(t, 0, infos[0].Members)

	assert.Equal(t, "general", infos[1].Name)
	assert.Equal(t, "normal", infos[1].Kind)
	assert.Equal(t, 1, infos[1].Members)
}
