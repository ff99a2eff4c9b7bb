package memorystore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKV_SetGetDel(t *testing.T) {
	ctx := context.Background()
	kv := NewKV()

	_, ok, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, kv.Set(ctx, "dialog:s:returnTo", []byte("https://rp.example/"), 0))
	v, ok, err := kv.Get(ctx, "dialog:s:returnTo")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "https://rp.example/", string(v))

	require.NoError(t, kv.Del(ctx, "dialog:s:returnTo"))
	_, ok, _ = kv.Get(ctx, "dialog:s:returnTo")
	require.False(t, ok)
}

func TestKV_ValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	kv := NewKV()
	in := []byte("abc")
	require.NoError(t, kv.Set(ctx, "k", in, 0))
	in[0] = 'x'

	out, _, _ := kv.Get(ctx, "k")
	require.Equal(t, "abc", string(out))
	out[0] = 'y'
	again, _, _ := kv.Get(ctx, "k")
	require.Equal(t, "abc", string(again))
}

func TestKV_TTLAndSweep(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	kv := NewKV()
	kv.now = func() time.Time { return now }

	require.NoError(t, kv.Set(ctx, "short", []byte("1"), time.Minute))
	require.NoError(t, kv.Set(ctx, "long", []byte("2"), time.Hour))
	require.NoError(t, kv.Set(ctx, "forever", []byte("3"), 0))

	now = now.Add(2 * time.Minute)
	_, ok, _ := kv.Get(ctx, "short")
	require.False(t, ok)

	require.NoError(t, kv.Set(ctx, "short2", []byte("4"), time.Second))
	now = now.Add(2 * time.Second)
	require.Equal(t, 1, kv.Sweep())
	require.Equal(t, 2, kv.Len())
}

func TestKV_StartSweeper(t *testing.T) {
	kv := NewKV()
	require.Error(t, kv.StartSweeper("not a schedule"))
	require.NoError(t, kv.StartSweeper("*/5 * * * *"))
	require.Error(t, kv.StartSweeper("*/5 * * * *"))
	kv.StopSweeper()
	require.NoError(t, kv.StartSweeper("0 * * * *"))
	kv.StopSweeper()
}
