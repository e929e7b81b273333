package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentMarker_ClaimOnce(t *testing.T) {
	client, mr := newTestClient(t)
	m := NewSentMarker(client, time.Hour)
	ctx := context.Background()

	ok, err := m.Claim(ctx, "case.tat_breached:7:3")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("ss:notified:case.tat_breached:7:3"))
	assert.Equal(t, time.Hour, mr.TTL("ss:notified:case.tat_breached:7:3"))

	ok, err = m.Claim(ctx, "case.tat_breached:7:3")
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(2 * time.Hour)
	ok, err = m.Claim(ctx, "case.tat_breached:7:3")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSentMarker_Release(t *testing.T) {
	client, mr := newTestClient(t)
	m := NewSentMarker(client, time.Hour)
	ctx := context.Background()

	_, err := m.Claim(ctx, "case.completed:8")
	require.NoError(t, err)
	require.NoError(t, m.Release(ctx, "case.completed:8", "case.completed:9"))
	assert.False(t, mr.Exists("ss:notified:case.completed:8"))
	require.NoError(t, m.Release(ctx))
}

func TestSentMarker_ClosedClient(t *testing.T) {
	client, _ := newTestClient(t)
	m := NewSentMarker(client, time.Hour)
	require.NoError(t, client.Close())

	_, err := m.Claim(context.Background(), "k")
	assert.ErrorIs(t, err, ErrClientClosed)
}
