package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatMessageRoundTrip(t *testing.T) {
	msg := NewChatMessage("general", "alice", "hello there")

	data, err := msg.Encode()
	require.NoError(t, err)

	parsed, err := ParseMessage(data)
	require.NoError(t, err)

	assert.Equal(t, MessageTypeMessageReceived, parsed.Type)
	assert.Equal(t, "general", parsed.RoomName)
	assert.Equal(t, "alice", parsed.Sender)
	assert.Equal(t, "hello there", parsed.Content)

	ts, err := time.Parse(time.RFC3339, parsed.Timestamp)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), ts, 5*time.Second)
}

func TestReadyEncodesBareType(t *testing.T) {
	data, err := NewReady().Encode()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"READY"}`, string(data))
}

func TestSuccessFieldDistinguishesFalseFromAbsent(t *testing.T) {
	explicit, err := ParseMessage([]byte(`{"type":"LOGIN_RESPONSE","success":false}`))
	require.NoError(t, err)
	require.NotNil(t, explicit.Success)
	assert.False(t, *explicit.Success)

	absent, err := ParseMessage([]byte(`{"type":"LOGIN_RESPONSE"}`))
	require.NoError(t, err)
	assert.Nil(t, absent.Success)
}

func TestLoginResponseCarriesToken(t *testing.T) {
	msg := NewLoginResponse(true, "token-abc")
	require.NotNil(t, msg.Success)
	assert.True(t, *msg.Success)
	assert.Equal(t, "token-abc", msg.Text)
}

func TestReconnectCarriesSessionFields(t *testing.T) {
	msg := NewReconnect("alice", "tok", "general")

	data, err := msg.Encode()
	require.NoError(t, err)

	parsed, err := ParseMessage(data)
	require.NoError(t, err)
	assert.Equal(t, "alice", parsed.Username)
	assert.Equal(t, "tok", parsed.Token)
	assert.Equal(t, "general", parsed.RoomName)
}

func TestParseMessageRejectsMalformedJSON(t *testing.T) {
	_, err := ParseMessage([]byte(`{"type":`))
	assert.Error(t, err)
}

func TestParseMessageIgnoresUnknownFields(t *testing.T) {
	parsed, err := ParseMessage([]byte(`{"type":"QUIT","unexpected":42}`))
	require.NoError(t, err)
	assert.Equal(t, MessageTypeQuit, parsed.Type)
}

func TestRoomJoinedMarksAIRooms(t *testing.T) {
	msg := NewRoomJoined("ai math", true)
	data, err := msg.Encode()
	require.NoError(t, err)

	parsed, err := ParseMessage(data)
	require.NoError(t, err)
	require.NotNil(t, parsed.IsAIRoom)
	assert.True(t, *parsed.IsAIRoom)
}

func TestWelcomeGreetsByName(t *testing.T) {
	msg := NewWelcome("bob")
	assert.Equal(t, MessageTypeWelcome, msg.Type)
	assert.Contains(t, msg.Text, "bob")
}
