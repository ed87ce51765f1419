package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"hirepal/internal/domain"
	"hirepal/internal/session"
)

// fakeRedis is an in-memory stand-in for the handful of commands RedisRegistry uses.
type fakeRedis struct {
	strings   map[string]string
	lists     map[string][]string
	ttls      map[string]time.Duration
	err       error
	pushErr   error
	setCalls  int
	evalCalls int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		strings: map[string]string{},
		lists:   map[string][]string{},
		ttls:    map[string]time.Duration{},
	}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	f.setCalls++
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.strings[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.strings[key] = value.(string)
	f.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Exists(_ context.Context, keys ...string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.strings[k]; ok {
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

// Eval runs appendScript's semantics; other scripts are rejected.
func (f *fakeRedis) Eval(_ context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	f.evalCalls++
	if script != appendScript {
		return redis.NewCmdResult(nil, errors.New("unexpected script"))
	}
	if f.pushErr != nil {
		return redis.NewCmdResult(nil, f.pushErr)
	}
	if _, ok := f.strings[keys[0]]; !ok {
		return redis.NewCmdResult(int64(-1), nil)
	}
	for _, v := range args[1:] {
		f.lists[keys[1]] = append(f.lists[keys[1]], v.(string))
	}
	if ttl := args[0].(int64); ttl > 0 {
		f.ttls[keys[0]] = time.Duration(ttl) * time.Millisecond
		f.ttls[keys[1]] = time.Duration(ttl) * time.Millisecond
	}
	return redis.NewCmdResult(int64(len(f.lists[keys[1]])), nil)
}

func (f *fakeRedis) LRange(_ context.Context, key string, _, _ int64) *redis.StringSliceCmd {
	return redis.NewStringSliceResult(append([]string(nil), f.lists[key]...), nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.strings[k]; ok {
			delete(f.strings, k)
			n++
		}
		if _, ok := f.lists[k]; ok {
			delete(f.lists, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func mustNewRedisRegistry(t *testing.T, f *fakeRedis, ttl time.Duration) *RedisRegistry {
	t.Helper()
	r, err := NewRedisRegistry(f, "", ttl)
	require.NoError(t, err)
	return r
}

func TestRedisRegistry_RoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFakeRedis()
	r := mustNewRedisRegistry(t, f, time.Hour)

	id, err := r.Create(ctx)
	require.NoError(t, err)
	require.Equal(t, time.Hour, f.ttls["hirepal:session:"+id+":meta"])

	require.NoError(t, r.Append(ctx, id, domain.UserTurn("q1"), domain.AssistantTurn("a1")))
	require.NoError(t, r.Append(ctx, id, domain.UserTurn("q2")))

	turns, err := r.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	require.Equal(t, []string{"q1", "a1", "q2"}, []string{turns[0].Text, turns[1].Text, turns[2].Text})
	require.Equal(t, domain.RoleAssistant, turns[1].Role)
	require.Equal(t, time.Hour, f.ttls["hirepal:session:"+id+":turns"])
}

func TestRedisRegistry_EmptyHistory(t *testing.T) {
	ctx := context.Background()
	r := mustNewRedisRegistry(t, newFakeRedis(), 0)
	id, err := r.Create(ctx)
	require.NoError(t, err)
	turns, err := r.History(ctx, id)
	require.NoError(t, err)
	require.Empty(t, turns)
}

func TestRedisRegistry_UnknownSession(t *testing.T) {
	ctx := context.Background()
	f := newFakeRedis()
	r := mustNewRedisRegistry(t, f, time.Hour)

	_, err := r.History(ctx, "missing")
	require.ErrorIs(t, err, session.ErrNotFound)
	require.ErrorIs(t, r.Append(ctx, "missing", domain.UserTurn("q")), session.ErrNotFound)
	require.ErrorIs(t, r.Expire(ctx, "missing"), session.ErrNotFound)
	require.Empty(t, f.lists)
}

func TestRedisRegistry_AppendAfterMetaExpiredLeavesNoTurns(t *testing.T) {
	ctx := context.Background()
	f := newFakeRedis()
	r := mustNewRedisRegistry(t, f, time.Hour)
	id, err := r.Create(ctx)
	require.NoError(t, err)

	delete(f.strings, "hirepal:session:"+id+":meta")
	err = r.Append(ctx, id, domain.UserTurn("q"), domain.AssistantTurn("a"))
	require.ErrorIs(t, err, session.ErrNotFound)
	require.Equal(t, 1, f.evalCalls)
	require.NotContains(t, f.lists, "hirepal:session:"+id+":turns")
}

func TestRedisRegistry_Expire(t *testing.T) {
	ctx := context.Background()
	f := newFakeRedis()
	r := mustNewRedisRegistry(t, f, time.Hour)
	id, _ := r.Create(ctx)
	require.NoError(t, r.Append(ctx, id, domain.UserTurn("q")))

	require.NoError(t, r.Expire(ctx, id))
	_, err := r.History(ctx, id)
	require.ErrorIs(t, err, session.ErrNotFound)
	require.Empty(t, f.lists)
}

func TestRedisRegistry_CreateRetriesOnCollision(t *testing.T) {
	ctx := context.Background()
	orig := session.NewID
	defer func() { session.NewID = orig }()
	ids := []string{"taken", "fresh"}
	session.NewID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	f := newFakeRedis()
	f.strings["hirepal:session:taken:meta"] = "x"
	id, err := mustNewRedisRegistry(t, f, time.Hour).Create(ctx)
	require.NoError(t, err)
	require.Equal(t, "fresh", id)
	require.Equal(t, 2, f.setCalls)
}

func TestRedisRegistry_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFakeRedis()
	f.err = errors.New("connection refused")
	r := mustNewRedisRegistry(t, f, time.Hour)

	_, err := r.Create(ctx)
	require.ErrorContains(t, err, "connection refused")
	_, err = r.History(ctx, "abc")
	require.ErrorContains(t, err, "connection refused")
	require.NotErrorIs(t, err, session.ErrNotFound)
}

func TestRedisRegistry_PushError(t *testing.T) {
	ctx := context.Background()
	f := newFakeRedis()
	r := mustNewRedisRegistry(t, f, time.Hour)
	id, _ := r.Create(ctx)
	f.pushErr = errors.New("OOM")
	require.ErrorContains(t, r.Append(ctx, id, domain.UserTurn("q")), "OOM")
}

func TestNewRedisRegistry_NilClient(t *testing.T) {
	_, err := NewRedisRegistry(nil, "", time.Hour)
	require.Error(t, err)
}
