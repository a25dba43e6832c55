package gamefeed

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gfracaro/wager-settlement-poc/pkg/contracts/gamedoc"
)

func rawDoc(t *testing.T, gameID, status string, homeScore int64) []byte {
	t.Helper()
	b, err := json.Marshal(gamedoc.Document{
		GameID: gameID,
		Status: status,
		Period: 1,
		Teams: []gamedoc.Team{
			{ID: "T1", Abbreviation: "KC", HomeAway: "home", Score: homeScore},
			{ID: "T2", Abbreviation: "BUF", HomeAway: "away", Score: 0},
		},
	})
	require.NoError(t, err)
	return b
}

func TestService_EmitsOnChange(t *testing.T) {
	s := NewService(zap.NewNop())
	ch := s.Subscribe(8, false)

	s.Observe(rawDoc(t, "g1", gamedoc.StatusInProgress, 0))
	s.Observe(rawDoc(t, "g1", gamedoc.StatusInProgress, 7))

	ev1 := <-ch
	ev2 := <-ch
	assert.Equal(t, "g1", ev1.GameID)
	assert.NotEqual(t, ev1.Signature, ev2.Signature)
	assert.Equal(t, int64(7), ev2.Doc.Home().Score)
}

func TestService_DedupesIdenticalContent(t *testing.T) {
	s := NewService(zap.NewNop())
	var emitted, skipped int
	s.OnEmitted = func() { emitted++ }
	s.OnSkipped = func() { skipped++ }
	ch := s.Subscribe(8, false)

	raw := rawDoc(t, "g1", gamedoc.StatusInProgress, 7)
	s.Observe(raw)
	s.Observe(raw)
	s.Observe(raw)

	assert.Equal(t, 1, emitted)
	assert.Equal(t, 2, skipped)
	assert.Len(t, ch, 1)
}

func TestService_TracksGamesIndependently(t *testing.T) {
	s := NewService(zap.NewNop())
	var emitted int
	s.OnEmitted = func() { emitted++ }

	s.Observe(rawDoc(t, "g1", gamedoc.StatusInProgress, 7))
	s.Observe(rawDoc(t, "g2", gamedoc.StatusInProgress, 7))
	s.Observe(rawDoc(t, "g1", gamedoc.StatusInProgress, 7)) // repetido só pro g1

	assert.Equal(t, 2, emitted)
}

func TestService_InvalidDocumentIsIgnored(t *testing.T) {
	s := NewService(zap.NewNop())
	var stage string
	s.OnError = func(s string) { stage = s }
	ch := s.Subscribe(8, false)

	s.Observe([]byte(`{broken`))
	s.Observe([]byte(`{"status":"in_progress"}`)) // sem gameId

	assert.Equal(t, "parse", stage)
	assert.Len(t, ch, 0)
}

func TestService_LatestReturnsCachedState(t *testing.T) {
	s := NewService(zap.NewNop())

	_, _, ok := s.Latest("g1")
	assert.False(t, ok)

	s.Observe(rawDoc(t, "g1", gamedoc.StatusInProgress, 14))
	doc, sig, ok := s.Latest("g1")
	require.True(t, ok)
	assert.NotEmpty(t, sig)
	assert.Equal(t, int64(14), doc.Home().Score)

	all := s.LatestAll()
	assert.Len(t, all, 1)
}

func TestService_SubscribeWithReplay(t *testing.T) {
	s := NewService(zap.NewNop())
	s.Observe(rawDoc(t, "g1", gamedoc.StatusInProgress, 7))
	s.Observe(rawDoc(t, "g2", gamedoc.StatusFinal, 21))

	ch := s.Subscribe(8, true)
	seen := map[string]bool{}
	seen[(<-ch).GameID] = true
	seen[(<-ch).GameID] = true
	assert.True(t, seen["g1"])
	assert.True(t, seen["g2"])
}

func TestService_SlowSubscriberDoesNotBlock(t *testing.T) {
	s := NewService(zap.NewNop())
	var dropped bool
	s.OnError = func(stage string) {
		if stage == "slow_subscriber" {
			dropped = true
		}
	}
	ch := s.Subscribe(1, false)

	s.Observe(rawDoc(t, "g1", gamedoc.StatusInProgress, 3))
	s.Observe(rawDoc(t, "g1", gamedoc.StatusInProgress, 10)) // buffer cheio, evento cai

	assert.True(t, dropped)
	assert.Len(t, ch, 1)
}
