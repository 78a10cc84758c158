package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/chatrelay/internal/room"
)

type fakeStats struct {
	rooms *room.Registry
}

func (f *fakeStats) ClientCount() int      { return 3 }
func (f *fakeStats) SessionCount() int     { return 2 }
func (f *fakeStats) Rooms() *room.Registry { return f.rooms }
func (f *fakeStats) Uptime() time.Duration { return 90 * time.Second }

func newTestEndpoint(t *testing.T, profiling bool) *httptest.Server {
	t.Helper()

	rooms := room.NewRegistry(nil)
	rooms.SeedDefaults()

	a := New("127.0.0.1:0", &fakeStats{rooms: rooms}, profiling)
	ts := httptest.NewServer(a.srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestHealthz(t *testing.T) {
	ts := newTestEndpoint(t, false)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatsReportsCounters(t *testing.T) {
	ts := newTestEndpoint(t, false)

	resp, err := http.Get(ts.URL + "/v1/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]int64
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, int64(3), body["connections"])
	assert.Equal(t, int64(2), body["sessions"])
	assert.Equal(t, int64(3), body["rooms"])
	assert.Equal(t, int64(90), body["uptime_seconds"])
}

func TestRoomsListsSeededRooms(t *testing.T) {
	ts := newTestEndpoint(t, false)

	resp, err := http.Get(ts.URL + "/v1/rooms")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Rooms []room.RoomInfo `json:"rooms"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	names := make(map[string]string)
	for _, info := range body.Rooms {
		names[info.Name] = info.Kind
	}
	assert.Equal(t, "ai", names["AI"])
	assert.Equal(t, "normal", names["parallel computation"])
}

func TestProfilingRoutesGatedByFlag(t *testing.T) {
	off := newTestEndpoint(t, false)
	resp, err := http.Get(off.URL + "/debug/pprof/heap")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	on := newTestEndpoint(t, true)
	resp, err = http.Get(on.URL + "/debug/pprof/heap")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
