package app_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/on-the-ground/effect_ive_runtime/effects"
	"github.com/on-the-ground/effect_ive_runtime/effects/auth"
	"github.com/on-the-ground/effect_ive_runtime/effects/database"
	"github.com/on-the-ground/effect_ive_runtime/effects/effecttest"
	"github.com/on-the-ground/effect_ive_runtime/effects/websocket"
	"github.com/on-the-ground/effect_ive_runtime/internal/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestGetProfile_CacheAside(t *testing.T) {
	rt := newRuntime(t, testConfig())
	user := mustRun(t, rt, effects.Single[database.User](database.CreateUser{Email: "ada@example.com", Name: "Ada"}))

	first := mustRun(t, rt, app.GetProfile(user.ID))
	second := mustRun(t, rt, app.GetProfile(user.ID))

	assert.True(t, first.Found)
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Data, second.Data)

	renamed := mustRun(t, rt, app.RenameUser(user.ID, "Ada L."))
	require.IsType(t, database.UserFound{}, renamed)

	third := mustRun(t, rt, app.GetProfile(user.ID))
	assert.False(t, third.Cached)
	assert.Equal(t, "Ada L.", third.Data.Name)
}

func TestGetProfile_UnknownUserIsNotCached(t *testing.T) {
	rec := effecttest.NewRecorder(effecttest.Handlers{ByTag: map[string]func(effects.Effect) effects.InterpretResult{
		"GetCachedProfile": func(eff effects.Effect) effects.InterpretResult {
			return effects.Returned(eff, cacheMiss(eff))
		},
		"GetUserById": func(eff effects.Effect) effects.InterpretResult {
			return effects.Returned(eff, database.UserNotFound{UserID: eff.(database.GetUserByID).UserID})
		},
	}})

	res := effects.Run(context.Background(), app.GetProfile(uuid.New()), rec)

	profile, ok := res.Value()
	require.True(t, ok)
	assert.False(t, profile.Found)
	assert.Equal(t, []string{"GetCachedProfile", "GetUserById"}, rec.Tags())
}

func TestGetProfile_DatabaseFailureSkipsCacheFill(t *testing.T) {
	id := uuid.New()
	failure := &effecttest.Fail{Eff: database.GetUserByID{UserID: id}, Msg: "connection refused", Transient: true}
	script := effecttest.NewScript(
		effects.Returned(cacheGet(id), cacheMiss(cacheGet(id))),
		effects.Failed(failure),
	)
	rec := effecttest.NewRecorder(script)

	res := effects.Run(context.Background(), app.GetProfile(id), rec)

	ierr, failed := res.Err()
	require.True(t, failed)
	assert.Same(t, failure, ierr)
	assert.Equal(t, 2, rec.Count())
}

func TestSignupAndLogin(t *testing.T) {
	rt := newRuntime(t, testConfig())

	signed := mustRun(t, rt, app.Signup("ada@example.com", "Ada", "correct horse"))
	require.IsType(t, app.SignedUp{}, signed)
	user := signed.(app.SignedUp).User
	assert.NotEqual(t, "correct horse", user.PasswordHash)

	again := mustRun(t, rt, app.Signup("ada@example.com", "Ada", "other"))
	assert.Equal(t, app.EmailTaken{Email: "ada@example.com"}, again)

	assert.Equal(t, app.InvalidCredentials{}, mustRun(t, rt, app.Login("ada@example.com", "wrong")))
	assert.Equal(t, app.InvalidCredentials{}, mustRun(t, rt, app.Login("nobody@example.com", "x")))

	logged := mustRun(t, rt, app.Login("ada@example.com", "correct horse"))
	require.IsType(t, app.LoggedIn{}, logged)
	assert.Equal(t, user.ID, logged.(app.LoggedIn).UserID)

	validation := mustRun(t, rt, app.Authenticate(logged.(app.LoggedIn).Token.AccessToken))
	valid, ok := validation.(auth.TokenValid)
	require.True(t, ok)
	assert.Equal(t, user.ID, valid.UserID)
}

// scriptedConn delivers inbox and then reports a receive timeout.
type scriptedConn struct {
	inbox  []string
	sent   []string
	closed string
}

func (c *scriptedConn) SendText(_ context.Context, text string) error {
	c.sent = append(c.sent, text)
	return nil
}

func (c *scriptedConn) ReceiveText(_ context.Context, timeout time.Duration) (websocket.Received, error) {
	if len(c.inbox) == 0 {
		return websocket.ReceiveTimeout{Timeout: timeout}, nil
	}
	text := c.inbox[0]
	c.inbox = c.inbox[1:]
	return websocket.TextReceived{Text: text}, nil
}

func (c *scriptedConn) Close(_ context.Context, _ int, reason string) error {
	c.closed = reason
	return nil
}

func TestRelayMessages(t *testing.T) {
	rt := newRuntime(t, testConfig())
	userID := uuid.New()
	conn := &scriptedConn{inbox: []string{"hello", "world"}}

	res := app.Run(context.Background(), rt, conn, app.RelayMessages(app.RelayConfig{
		UserID:       userID,
		Topic:        "chat",
		Subscription: "s",
		IdleTimeout:  time.Millisecond,
	}))

	relayed, ok := res.Value()
	require.True(t, ok)
	assert.Equal(t, 2, relayed)
	assert.Equal(t, "idle", conn.closed)
	require.Len(t, conn.sent, 2)
	var event app.ChatEvent
	require.NoError(t, json.Unmarshal([]byte(conn.sent[1]), &event))
	assert.Equal(t, "world", event.Text)
	assert.Equal(t, userID, event.UserID)

	history := mustRun(t, rt, effects.Single[[]database.ChatMessage](database.ListMessagesForUser{UserID: userID}))
	assert.Len(t, history, 2)
}

func TestRelayMessages_StopsAtMaxMessages(t *testing.T) {
	rt := newRuntime(t, testConfig())
	conn := &scriptedConn{inbox: []string{"a", "b", "c"}}

	res := app.Run(context.Background(), rt, conn, app.RelayMessages(app.RelayConfig{
		UserID: uuid.New(), Topic: "chat", Subscription: "s", MaxMessages: 2,
	}))

	relayed, ok := res.Value()
	require.True(t, ok)
	assert.Equal(t, 2, relayed)
	assert.Equal(t, []string{"c"}, conn.inbox)
	assert.Empty(t, conn.closed)
}

func TestRelayMessages_UnknownTopicEndsSession(t *testing.T) {
	rt := newRuntime(t, testConfig())
	conn := &scriptedConn{inbox: []string{"a"}}

	res := app.Run(context.Background(), rt, conn, app.RelayMessages(app.RelayConfig{
		UserID: uuid.New(), Topic: "missing", Subscription: "s",
	}))

	ierr, failed := res.Err()
	require.True(t, failed)
	assert.False(t, ierr.Retryable())
	assert.Empty(t, conn.sent)
}

func TestRelayMessages_ConcurrentSessionsShareATopic(t *testing.T) {
	rt := newRuntime(t, testConfig())

	var g errgroup.Group
	for _, sub := range []string{"alice", "bob"} {
		conn := &scriptedConn{inbox: []string{"1", "2", "3"}}
		g.Go(func() error {
			res := app.Run(context.Background(), rt, conn, app.RelayMessages(app.RelayConfig{
				UserID: uuid.New(), Topic: "chat", Subscription: sub, IdleTimeout: time.Millisecond,
			}))
			if ierr, failed := res.Err(); failed {
				return ierr
			}
			if len(conn.sent) != 3 {
				return fmt.Errorf("%s received %d messages", sub, len(conn.sent))
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}
