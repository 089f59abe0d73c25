package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"pairsense-backend/internal/models"
	"pairsense-backend/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_EmptyTokensIsNoop(t *testing.T) {
	provider := &fakeMulticaster{}
	d := services.NewDispatcher(provider, newMemUserStore(), 500)

	res, err := d.Send(context.Background(), "alice", nil, services.PushPayload{Title: "hi"})
	require.NoError(t, err)
	assert.Zero(t, res.SuccessCount)
	assert.Empty(t, provider.batches)
}

func TestDispatcher_SlicesToBatchLimit(t *testing.T) {
	provider := &fakeMulticaster{}
	d := services.NewDispatcher(provider, newMemUserStore(), 2)

	tokens := []string{"a", "b", "c", "d", "e"}
	res, err := d.Send(context.Background(), "alice", tokens, services.PushPayload{})
	require.NoError(t, err)

	assert.Equal(t, 5, res.SuccessCount)
	require.Len(t, provider.batches, 3)
	assert.Equal(t, []string{"a", "b"}, provider.batches[0])
	assert.Equal(t, []string{"c", "d"}, provider.batches[1])
	assert.Equal(t, []string{"e"}, provider.batches[2])
}

func TestDispatcher_PartialFailureDoesNotFailCall(t *testing.T) {
	users := newMemUserStore()
	users.put(&models.User{ID: "alice", NotificationTokens: []string{"good-1", "invalid-1"}})
	d := services.NewDispatcher(&fakeMulticaster{}, users, 500)

	res, err := d.Send(context.Background(), "alice", []string{"good-1", "invalid-1"}, services.PushPayload{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.SuccessCount)
	assert.Equal(t, 1, res.FailureCount)
	assert.Equal(t, []string{"invalid-1"}, res.InvalidTokens)
}

func TestDispatcher_InvalidTokensRemovedInOneWrite(t *testing.T) {
	users := newMemUserStore()
	users.put(&models.User{ID: "alice", NotificationTokens: []string{"good-1", "invalid-1", "invalid-2"}})
	d := services.NewDispatcher(&fakeMulticaster{}, users, 2)

	_, err := d.Send(context.Background(), "alice", []string{"good-1", "invalid-1", "invalid-2"}, services.PushPayload{})
	require.NoError(t, err)

	stored, err := users.GetByID(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"good-1"}, stored.NotificationTokens)
}

func TestDispatcher_TransportFailureIsAnError(t *testing.T) {
	provider := &fakeMulticaster{err: errors.New("connection refused")}
	d := services.NewDispatcher(provider, newMemUserStore(), 500)

	_, err := d.Send(context.Background(), "alice", []string{"a", "b"}, services.PushPayload{})
	require.Error(t, err)
}

func TestDispatcher_ZeroBatchSizeDefaults(t *testing.T) {
	provider := &fakeMulticaster{}
	d := services.NewDispatcher(provider, newMemUserStore(), 0)

	tokens := make([]string, 600)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("tok-%d", i)
	}
	res, err := d.Send(context.Background(), "alice", tokens, services.PushPayload{})
	require.NoError(t, err)

	assert.Equal(t, 600, res.SuccessCount)
	require.Len(t, provider.batches, 2)
	assert.Len(t, provider.batches[0], 500)
	assert.Len(t, provider.batches[1], 100)
}
