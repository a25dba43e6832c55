package modes

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gfracaro/wager-settlement-poc/pkg/contracts/gamedoc"
)

func newSpreadValidator(e *env) Validator {
	return SpreadMode{}.NewValidator(e.deps())
}

func TestSpread_HomeCovers(t *testing.T) {
	e := newEnv(t)
	v := newSpreadValidator(e)
	e.addPending("b1", "g1", "spread", SpreadConfig{Spread: -6.5})

	// 27 - 6.5 = 20.5 > 17: mandante cobre o handicap
	final := testDoc("g1", gamedoc.StatusFinal, 27, 17)
	v.OnGameUpdate(context.Background(), "g1", final)

	require.Len(t, e.queue.wins, 1)
	assert.Equal(t, "KC", e.queue.wins[0].choice)
}

func TestSpread_AwayCovers(t *testing.T) {
	e := newEnv(t)
	v := newSpreadValidator(e)
	e.addPending("b1", "g1", "spread", SpreadConfig{Spread: -6.5})

	// 20 - 6.5 = 13.5 < 17: visitante cobre
	final := testDoc("g1", gamedoc.StatusFinal, 20, 17)
	v.OnGameUpdate(context.Background(), "g1", final)

	require.Len(t, e.queue.wins, 1)
	assert.Equal(t, "BUF", e.queue.wins[0].choice)
}

func TestSpread_ExactTieIsPush(t *testing.T) {
	e := newEnv(t)
	v := newSpreadValidator(e)
	e.addPending("b1", "g1", "spread", SpreadConfig{Spread: -7})

	// 24 - 7 = 17 = 17: push
	final := testDoc("g1", gamedoc.StatusFinal, 24, 17)
	v.OnGameUpdate(context.Background(), "g1", final)

	assert.Empty(t, e.queue.wins)
	require.Len(t, e.queue.washes, 1)
	assert.Equal(t, ReasonPush, e.queue.washes[0].reason)
}

func TestSpread_NothingBeforeFinal(t *testing.T) {
	e := newEnv(t)
	v := newSpreadValidator(e)
	e.addPending("b1", "g1", "spread", SpreadConfig{Spread: -6.5})

	live := testDoc("g1", gamedoc.StatusInProgress, 27, 10)
	v.OnGameUpdate(context.Background(), "g1", live)

	assert.Empty(t, e.queue.wins)
	assert.Empty(t, e.queue.washes)
}

func TestSpread_InvalidSpreadWashes(t *testing.T) {
	e := newEnv(t)
	v := newSpreadValidator(e)
	bet := e.addPending("b1", "g1", "spread", SpreadConfig{Spread: 3.2})

	v.OnBetBecamePending(context.Background(), bet)

	require.Len(t, e.queue.washes, 1)
	assert.Equal(t, ReasonInvalidSpread, e.queue.washes[0].reason)
}

func TestSpread_PendingAfterFinalResolvesImmediately(t *testing.T) {
	e := newEnv(t)
	v := newSpreadValidator(e)
	bet := e.addPending("b1", "g1", "spread", SpreadConfig{Spread: 2.5})
	e.docs["g1"] = testDoc("g1", gamedoc.StatusFinal, 17, 21)

	v.OnBetBecamePending(context.Background(), bet)

	// 17 + 2.5 = 19.5 < 21
	require.Len(t, e.queue.wins, 1)
	assert.Equal(t, "BUF", e.queue.wins[0].choice)
}

func TestSpread_MissingHomeAwayWashes(t *testing.T) {
	e := newEnv(t)
	v := newSpreadValidator(e)
	e.addPending("b1", "g1", "spread", SpreadConfig{Spread: -3.5})

	doc := &gamedoc.Document{
		GameID: "g1",
		Status: gamedoc.StatusFinal,
		Teams: []gamedoc.Team{
			{ID: "TH", Abbreviation: "KC", Score: 20},
			{ID: "TA", Abbreviation: "BUF", Score: 17},
		},
	}
	v.OnGameUpdate(context.Background(), "g1", doc)

	require.Len(t, e.queue.washes, 1)
	assert.Equal(t, ReasonInvalidConfig, e.queue.washes[0].reason)
}

func TestSpreadMode_ValidateConfig(t *testing.T) {
	m := SpreadMode{}

	raw, _ := json.Marshal(SpreadConfig{Spread: -6.5})
	assert.Empty(t, m.ValidateConfig(raw))

	raw, _ = json.Marshal(SpreadConfig{Spread: 120})
	assert.NotEmpty(t, m.ValidateConfig(raw))

	raw, _ = json.Marshal(SpreadConfig{Spread: 3.2})
	assert.NotEmpty(t, m.ValidateConfig(raw))
}

func TestSpreadMode_OptionsAreTeams(t *testing.T) {
	opts := SpreadMode{}.ComputeOptions(nil, ProposalContext{HomeTeam: "KC", AwayTeam: "BUF"})
	assert.Equal(t, []string{"KC", "BUF"}, opts)
}
