package actuator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *OneBotClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOneBotClient(srv.URL, "test-token", 100)
}

func okResponse(data any) []byte {
	out, _ := json.Marshal(map[string]any{
		"status":  "ok",
		"retcode": 0,
		"data":    data,
	})
	return out
}

func TestMute(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	var gotPath string
	var gotParams map[string]any
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal("Bearer test-token", r.Header.Get("Authorization"))
		require.NoError(json.NewDecoder(r.Body).Decode(&gotParams))
		_, _ = w.Write(okResponse(nil))
	})

	require.NoError(c.Mute(ctx, "123456", "654321", 10*time.Minute))
	assert.Equal("/set_group_ban", gotPath)
	assert.Equal(float64(123456), gotParams["group_id"])
	assert.Equal(float64(654321), gotParams["user_id"])
	assert.Equal(float64(600), gotParams["duration"])
}

func TestMuteInvalidID(t *testing.T) {
	assert := assert.New(t)
	c := NewOneBotClient("http://localhost:1", "", 100)
	err := c.Mute(context.Background(), "not-a-number", "654321", time.Minute)
	assert.Error(err)
	assert.Contains(err.Error(), "invalid group id")
}

func TestPermissionDenied(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		out, _ := json.Marshal(map[string]any{
			"status":  "failed",
			"retcode": 1100,
			"msg":     "PERMISSION_DENIED",
		})
		_, _ = w.Write(out)
	})

	err := c.Mute(ctx, "1", "2", time.Minute)
	assert.ErrorIs(err, ErrPermissionDenied)
}

func TestNotFound(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		out, _ := json.Marshal(map[string]any{
			"status":  "failed",
			"retcode": 1404,
			"msg":     "message not found",
		})
		_, _ = w.Write(out)
	})

	err := c.DeleteMessage(ctx, "42")
	assert.ErrorIs(err, ErrNotFound)
}

func TestLookupUserInfo(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/get_stranger_info", r.URL.Path)
		_, _ = w.Write(okResponse(map[string]any{
			"user_id":  654321,
			"nickname": "somebody",
			"qqLevel":  32,
		}))
	})

	info, err := c.LookupUserInfo(ctx, "654321")
	require.NoError(err)
	assert.Equal("654321", info.UserID)
	assert.Equal("somebody", info.Nickname)
	require.NotNil(info.Level)
	assert.Equal(32, *info.Level)
}

func TestLookupUserInfoHiddenLevel(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(okResponse(map[string]any{
			"user_id":       654321,
			"nickname":      "somebody",
			"qqLevel":       32,
			"isHideQQLevel": true,
		}))
	})

	info, err := c.LookupUserInfo(ctx, "654321")
	require.NoError(err)
	assert.Nil(info.Level)
}

func TestResolveJoinRequest(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	var gotParams map[string]any
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/set_group_add_request", r.URL.Path)
		require.NoError(json.NewDecoder(r.Body).Decode(&gotParams))
		_, _ = w.Write(okResponse(nil))
	})

	require.NoError(c.ResolveJoinRequest(ctx, "flag123", false, "blacklisted"))
	assert.Equal("flag123", gotParams["flag"])
	assert.Equal(false, gotParams["approve"])
	assert.Equal("blacklisted", gotParams["reason"])

	require.NoError(c.ResolveJoinRequest(ctx, "flag124", true, "ignored"))
	assert.Equal(true, gotParams["approve"])
	assert.Equal("", gotParams["reason"])
}
