package resolution

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gfracaro/wager-settlement-poc/internal/betrepo"
)

type fakeWashRepo struct {
	washed    *betrepo.WashedBet
	washErr   error
	histErr   error
	washCalls []string
	history   []string
}

func (f *fakeWashRepo) WashBet(_ context.Context, betID, fromStatus string) (*betrepo.WashedBet, error) {
	f.washCalls = append(f.washCalls, betID+"/"+fromStatus)
	if f.washErr != nil {
		return nil, f.washErr
	}
	return f.washed, nil
}

func (f *fakeWashRepo) RecordHistory(_ context.Context, betID, eventType string, _ json.RawMessage) error {
	f.history = append(f.history, betID+"/"+eventType)
	return f.histErr
}

type fakeChat struct {
	posts []string
	err   error
}

func (f *fakeChat) Post(_ context.Context, tableID, text string) error {
	if f.err != nil {
		return f.err
	}
	f.posts = append(f.posts, tableID+": "+text)
	return nil
}

func TestWasher_AppliesAndNotifies(t *testing.T) {
	repo := &fakeWashRepo{washed: &betrepo.WashedBet{BetID: "b1", TableID: "t1"}}
	chat := &fakeChat{}
	w := &Washer{Log: zap.NewNop(), Repo: repo, Chat: chat}

	applied, err := w.Wash(context.Background(), "b1", betrepo.StatusPending, "bet_washed", "Spread", "Aposta anulada (push).", nil)
	require.NoError(t, err)
	assert.True(t, applied)

	assert.Equal(t, []string{"b1/PENDING"}, repo.washCalls)
	assert.Equal(t, []string{"b1/bet_washed"}, repo.history)
	require.Len(t, chat.posts, 1)
	assert.Equal(t, "t1: [Spread] Aposta anulada (push).", chat.posts[0])
}

func TestWasher_ConflictIsBenignNoOp(t *testing.T) {
	repo := &fakeWashRepo{washed: nil} // aposta já fora do status esperado
	chat := &fakeChat{}
	w := &Washer{Log: zap.NewNop(), Repo: repo, Chat: chat}

	applied, err := w.Wash(context.Background(), "b1", betrepo.StatusPending, "bet_washed", "Spread", "x", nil)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Empty(t, repo.history)
	assert.Empty(t, chat.posts)
}

func TestWasher_RepoErrorPropagates(t *testing.T) {
	repo := &fakeWashRepo{washErr: errors.New("pg down")}
	w := &Washer{Log: zap.NewNop(), Repo: repo, Chat: &fakeChat{}}

	applied, err := w.Wash(context.Background(), "b1", betrepo.StatusPending, "bet_washed", "Spread", "x", nil)
	require.Error(t, err)
	assert.False(t, applied)
}

func TestWasher_NotificationFailureDoesNotUndoWash(t *testing.T) {
	repo := &fakeWashRepo{washed: &betrepo.WashedBet{BetID: "b1", TableID: "t1"}, histErr: errors.New("hist down")}
	chat := &fakeChat{err: errors.New("chat down")}
	w := &Washer{Log: zap.NewNop(), Repo: repo, Chat: chat}

	applied, err := w.Wash(context.Background(), "b1", betrepo.StatusPending, "bet_washed", "Spread", "x", nil)
	require.NoError(t, err)
	assert.True(t, applied)
}
