package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kindervilla/realtime/internal/auth"
	"github.com/kindervilla/realtime/internal/config"
	"github.com/kindervilla/realtime/internal/hub"
	"github.com/kindervilla/realtime/internal/protocol"
)

const e2eSecret = "e2e-secret"

func testConfig() *config.Config {
	return &config.Config{
		Mode:              "release",
		Secret:            e2eSecret,
		ReadLimit:         32768,
		SendBuffer:        64,
		HeartbeatInterval: time.Second,
		IdleTimeout:       30 * time.Second,
	}
}

func startRealtime(t *testing.T, cfg *config.Config) (*httptest.Server, *hub.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := hub.New()
	ctl := NewController(h, auth.NewJWTVerifier(cfg.Secret), cfg)
	r := gin.New()
	r.GET("/ws", ctl.HandleWS)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, h
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func sendMsg(t *testing.T, c *websocket.Conn, msgType string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	frame, err := json.Marshal(protocol.Envelope{
		Type:      msgType,
		Data:      raw,
		Timestamp: time.Now().UnixMilli(),
	})
	require.NoError(t, err)
	require.NoError(t, c.WriteMessage(websocket.TextMessage, frame))
}

func expect(t *testing.T, c *websocket.Conn, wantType string) *protocol.Envelope {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := c.ReadMessage()
	require.NoError(t, err, "waiting for %q", wantType)
	env, err := protocol.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, wantType, env.Type)
	return env
}

func payload[T any](t *testing.T, env *protocol.Envelope) T {
	t.Helper()
	var p T
	require.NoError(t, json.Unmarshal(env.Data, &p))
	return p
}

func signedToken(t *testing.T, subject string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(e2eSecret))
	require.NoError(t, err)
	return token
}

// roundTrip forces the server to finish every frame sent before it on the
// same connection.
func roundTrip(t *testing.T, c *websocket.Conn) {
	t.Helper()
	sendMsg(t, c, protocol.TypePing, struct{}{})
	expect(t, c, protocol.TypePong)
}

func TestEndToEnd_ChatScenario(t *testing.T) {
	srv, _ := startRealtime(t, testConfig())

	u1 := dialWS(t, srv)
	expect(t, u1, protocol.TypeWelcome)

	sendMsg(t, u1, protocol.TypeAuth, protocol.AuthPayload{Token: signedToken(t, "u1")})
	authOK := payload[protocol.AuthSuccessPayload](t, expect(t, u1, protocol.TypeAuthSuccess))
	assert.Equal(t, "u1", authOK.UserID)
	presence := payload[protocol.PresenceUpdatePayload](t, expect(t, u1, protocol.TypePresenceUpdate))
	assert.Equal(t, []string{"u1"}, presence.Users)

	sendMsg(t, u1, protocol.TypeJoinRoom, protocol.JoinRoomPayload{RoomID: "r1"})
	roundTrip(t, u1)

	u2 := dialWS(t, srv)
	expect(t, u2, protocol.TypeWelcome)
	sendMsg(t, u2, protocol.TypeAuth, protocol.AuthPayload{Token: signedToken(t, "u2")})
	expect(t, u2, protocol.TypeAuthSuccess)
	presence = payload[protocol.PresenceUpdatePayload](t, expect(t, u2, protocol.TypePresenceUpdate))
	assert.Equal(t, []string{"u1", "u2"}, presence.Users)

	presence = payload[protocol.PresenceUpdatePayload](t, expect(t, u1, protocol.TypePresenceUpdate))
	assert.Equal(t, []string{"u1", "u2"}, presence.Users)

	sendMsg(t, u2, protocol.TypeJoinRoom, protocol.JoinRoomPayload{RoomID: "r1"})
	joined := payload[protocol.UserJoinedPayload](t, expect(t, u1, protocol.TypeUserJoined))
	assert.Equal(t, "u2", joined.UserID)
	assert.Equal(t, "r1", joined.RoomID)

	sendMsg(t, u2, protocol.TypeChatMessage, protocol.ChatMessagePayload{RoomID: "r1", Message: "hi"})
	chat := payload[protocol.ChatMessageOut](t, expect(t, u1, protocol.TypeChatMessage))
	assert.Equal(t, "r1", chat.RoomID)
	assert.Equal(t, "u2", chat.UserID)
	assert.Equal(t, "hi", chat.Message)
	assert.Positive(t, chat.Timestamp)

	// The sender must not get its own message back: the next frame u2
	// sees after a ping is the pong, nothing in between.
	roundTrip(t, u2)

	sendMsg(t, u2, protocol.TypeTyping, protocol.TypingPayload{RoomID: "r1", IsTyping: true})
	typing := payload[protocol.TypingOut](t, expect(t, u1, protocol.TypeTyping))
	assert.Equal(t, "u2", typing.UserID)
	assert.True(t, typing.IsTyping)

	require.NoError(t, u2.Close())

	left := payload[protocol.UserLeftPayload](t, expect(t, u1, protocol.TypeUserLeft))
	assert.Equal(t, "u2", left.UserID)
	assert.Equal(t, "r1", left.RoomID)
	presence = payload[protocol.PresenceUpdatePayload](t, expect(t, u1, protocol.TypePresenceUpdate))
	assert.Equal(t, []string{"u1"}, presence.Users)
}

func TestAuthGate_RejectsUntilAuthenticated(t *testing.T) {
	srv, h := startRealtime(t, testConfig())

	c := dialWS(t, srv)
	expect(t, c, protocol.TypeWelcome)

	sendMsg(t, c, protocol.TypeJoinRoom, protocol.JoinRoomPayload{RoomID: "r1"})
	errFrame := payload[protocol.ErrorPayload](t, expect(t, c, protocol.TypeError))
	assert.Equal(t, protocol.CodeNotAuthenticated, errFrame.Code)
	assert.Nil(t, h.MembersOf("r1"), "rejected join must not be processed")

	sendMsg(t, c, protocol.TypeChatMessage, protocol.ChatMessagePayload{RoomID: "r1", Message: "hi"})
	errFrame = payload[protocol.ErrorPayload](t, expect(t, c, protocol.TypeError))
	assert.Equal(t, protocol.CodeNotAuthenticated, errFrame.Code)

	// ping stays allowed while unauthenticated
	roundTrip(t, c)
}

func TestAuth_InvalidTokenThenRetry(t *testing.T) {
	srv, h := startRealtime(t, testConfig())

	c := dialWS(t, srv)
	expect(t, c, protocol.TypeWelcome)

	sendMsg(t, c, protocol.TypeAuth, protocol.AuthPayload{Token: "bogus"})
	failed := payload[protocol.AuthFailedPayload](t, expect(t, c, protocol.TypeAuthFailed))
	assert.NotEmpty(t, failed.Error)
	assert.Empty(t, h.OnlineUsers(), "failed auth must not register an identity")

	sendMsg(t, c, protocol.TypeAuth, protocol.AuthPayload{Token: signedToken(t, "u1")})
	authOK := payload[protocol.AuthSuccessPayload](t, expect(t, c, protocol.TypeAuthSuccess))
	assert.Equal(t, "u1", authOK.UserID)
	expect(t, c, protocol.TypePresenceUpdate)
	assert.Equal(t, []string{"u1"}, h.OnlineUsers())
}

func TestAuth_SecondAuthRejected(t *testing.T) {
	srv, _ := startRealtime(t, testConfig())

	c := dialWS(t, srv)
	expect(t, c, protocol.TypeWelcome)
	sendMsg(t, c, protocol.TypeAuth, protocol.AuthPayload{Token: signedToken(t, "u1")})
	expect(t, c, protocol.TypeAuthSuccess)
	expect(t, c, protocol.TypePresenceUpdate)

	sendMsg(t, c, protocol.TypeAuth, protocol.AuthPayload{Token: signedToken(t, "u2")})
	errFrame := payload[protocol.ErrorPayload](t, expect(t, c, protocol.TypeError))
	assert.Equal(t, protocol.CodeAlreadyAuthenticated, errFrame.Code)
}

func TestProtocolError_KeepsConnectionOpen(t *testing.T) {
	srv, _ := startRealtime(t, testConfig())

	c := dialWS(t, srv)
	expect(t, c, protocol.TypeWelcome)

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte("not json at all")))
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{"data":{}}`)))

	// Both frames are dropped silently; the connection still answers.
	roundTrip(t, c)
}

func TestPresenceRequest_GoesToRequesterOnly(t *testing.T) {
	srv, _ := startRealtime(t, testConfig())

	u1 := dialWS(t, srv)
	expect(t, u1, protocol.TypeWelcome)
	sendMsg(t, u1, protocol.TypeAuth, protocol.AuthPayload{Token: signedToken(t, "u1")})
	expect(t, u1, protocol.TypeAuthSuccess)
	expect(t, u1, protocol.TypePresenceUpdate)

	sendMsg(t, u1, protocol.TypePresence, struct{}{})
	presence := payload[protocol.PresenceUpdatePayload](t, expect(t, u1, protocol.TypePresenceUpdate))
	assert.Equal(t, []string{"u1"}, presence.Users)
}

func TestMultiDevice_PresenceDropsAfterLastClose(t *testing.T) {
	srv, _ := startRealtime(t, testConfig())

	observer := dialWS(t, srv)
	expect(t, observer, protocol.TypeWelcome)
	sendMsg(t, observer, protocol.TypeAuth, protocol.AuthPayload{Token: signedToken(t, "observer")})
	expect(t, observer, protocol.TypeAuthSuccess)
	expect(t, observer, protocol.TypePresenceUpdate)

	authDevice := func(c *websocket.Conn) {
		expect(t, c, protocol.TypeWelcome)
		sendMsg(t, c, protocol.TypeAuth, protocol.AuthPayload{Token: signedToken(t, "u1")})
		expect(t, c, protocol.TypeAuthSuccess)
		expect(t, c, protocol.TypePresenceUpdate)
	}

	phone := dialWS(t, srv)
	authDevice(phone)
	presence := payload[protocol.PresenceUpdatePayload](t, expect(t, observer, protocol.TypePresenceUpdate))
	assert.Equal(t, []string{"observer", "u1"}, presence.Users)

	laptop := dialWS(t, srv)
	authDevice(laptop)
	presence = payload[protocol.PresenceUpdatePayload](t, expect(t, observer, protocol.TypePresenceUpdate))
	assert.Equal(t, []string{"observer", "u1"}, presence.Users)

	require.NoError(t, phone.Close())
	presence = payload[protocol.PresenceUpdatePayload](t, expect(t, observer, protocol.TypePresenceUpdate))
	assert.Equal(t, []string{"observer", "u1"}, presence.Users, "one device left, user stays online")

	require.NoError(t, laptop.Close())
	presence = payload[protocol.PresenceUpdatePayload](t, expect(t, observer, protocol.TypePresenceUpdate))
	assert.Equal(t, []string{"observer"}, presence.Users, "last device gone, user goes offline")
}

func TestIdleTimeout_ClosesSilentConnection(t *testing.T) {
	cfg := testConfig()
	cfg.HeartbeatInterval = 50 * time.Millisecond
	cfg.IdleTimeout = 150 * time.Millisecond
	srv, _ := startRealtime(t, cfg)

	c := dialWS(t, srv)
	expect(t, c, protocol.TypeWelcome)

	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := c.ReadMessage()
	assert.Error(t, err, "server must close a silent connection")
}
