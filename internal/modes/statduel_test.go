package modes

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gfracaro/wager-settlement-poc/pkg/contracts/gamedoc"
)

func duelCfg() StatDuelConfig {
	return StatDuelConfig{
		PlayerAID:   "P1",
		PlayerAName: "Patrick Mahomes",
		PlayerBID:   "P2",
		PlayerBName: "Josh Allen",
		Category:    "passing",
		Field:       "passingYards",
	}
}

func duelDoc(gameID, status string, yardsA, yardsB float64) *gamedoc.Document {
	return testDoc(gameID, status, 14, 10,
		playerWith("P1", "Patrick Mahomes", "passing", "passingYards", yardsA),
		playerWith("P2", "Josh Allen", "passing", "passingYards", yardsB),
	)
}

func newDuelValidator(e *env) Validator {
	return StatDuelMode{}.NewValidator(e.deps())
}

func TestStatDuel_WinnerByProgress(t *testing.T) {
	e := newEnv(t)
	v := newDuelValidator(e)
	bet := e.addPending("b1", "g1", "stat_duel", duelCfg())

	// baseline: A=100, B=150
	e.docs["g1"] = duelDoc("g1", gamedoc.StatusInProgress, 100, 150)
	v.OnBetBecamePending(context.Background(), bet)
	require.NotNil(t, e.baselines.recs["b1"])

	// final: A avançou 120, B avançou 80 — A vence mesmo com total menor
	v.OnGameUpdate(context.Background(), "g1", duelDoc("g1", gamedoc.StatusFinal, 220, 230))

	require.Len(t, e.queue.wins, 1)
	assert.Equal(t, "Patrick Mahomes", e.queue.wins[0].choice)
}

func TestStatDuel_ExactTieIsPush(t *testing.T) {
	e := newEnv(t)
	v := newDuelValidator(e)
	bet := e.addPending("b1", "g1", "stat_duel", duelCfg())

	e.docs["g1"] = duelDoc("g1", gamedoc.StatusInProgress, 100, 150)
	v.OnBetBecamePending(context.Background(), bet)

	v.OnGameUpdate(context.Background(), "g1", duelDoc("g1", gamedoc.StatusFinal, 180, 230))

	assert.Empty(t, e.queue.wins)
	require.Len(t, e.queue.washes, 1)
	assert.Equal(t, ReasonPush, e.queue.washes[0].reason)
}

func TestStatDuel_NothingBeforeFinal(t *testing.T) {
	e := newEnv(t)
	v := newDuelValidator(e)
	bet := e.addPending("b1", "g1", "stat_duel", duelCfg())

	e.docs["g1"] = duelDoc("g1", gamedoc.StatusInProgress, 100, 150)
	v.OnBetBecamePending(context.Background(), bet)

	v.OnGameUpdate(context.Background(), "g1", duelDoc("g1", gamedoc.StatusInProgress, 300, 160))

	assert.Empty(t, e.queue.wins)
	assert.Empty(t, e.queue.washes)
}

func TestStatDuel_BaselineCapturedOnFirstUpdate(t *testing.T) {
	e := newEnv(t)
	v := newDuelValidator(e)
	bet := e.addPending("b1", "g1", "stat_duel", duelCfg())

	// PENDING antes do primeiro documento do jogo
	v.OnBetBecamePending(context.Background(), bet)
	assert.Nil(t, e.baselines.recs["b1"])

	v.OnGameUpdate(context.Background(), "g1", duelDoc("g1", gamedoc.StatusInProgress, 50, 60))
	require.NotNil(t, e.baselines.recs["b1"])
	assert.Equal(t, 50.0, e.baselines.recs["b1"].Values["P1"])
	assert.Equal(t, 60.0, e.baselines.recs["b1"].Values["P2"])
}

func TestStatDuel_MissingPlayerCountsAsZero(t *testing.T) {
	e := newEnv(t)
	v := newDuelValidator(e)
	bet := e.addPending("b1", "g1", "stat_duel", duelCfg())

	// só o jogador A aparece no boxscore
	e.docs["g1"] = testDoc("g1", gamedoc.StatusInProgress, 0, 0,
		playerWith("P1", "Patrick Mahomes", "passing", "passingYards", 10))
	v.OnBetBecamePending(context.Background(), bet)

	v.OnGameUpdate(context.Background(), "g1", testDoc("g1", gamedoc.StatusFinal, 24, 17,
		playerWith("P1", "Patrick Mahomes", "passing", "passingYards", 210)))

	require.Len(t, e.queue.wins, 1)
	assert.Equal(t, "Patrick Mahomes", e.queue.wins[0].choice)
}

func TestStatDuel_InvalidConfigWashes(t *testing.T) {
	e := newEnv(t)
	v := newDuelValidator(e)
	cfg := duelCfg()
	cfg.PlayerBID = cfg.PlayerAID
	bet := e.addPending("b1", "g1", "stat_duel", cfg)

	v.OnBetBecamePending(context.Background(), bet)

	require.Len(t, e.queue.washes, 1)
	assert.Equal(t, ReasonInvalidConfig, e.queue.washes[0].reason)
}

func TestStatDuelMode_ValidateConfig(t *testing.T) {
	m := StatDuelMode{}

	raw, _ := json.Marshal(duelCfg())
	assert.Empty(t, m.ValidateConfig(raw))

	bad := duelCfg()
	bad.Category = ""
	raw, _ = json.Marshal(bad)
	assert.NotEmpty(t, m.ValidateConfig(raw))
}

func TestStatDuelMode_OptionsArePlayerNames(t *testing.T) {
	raw, _ := json.Marshal(duelCfg())
	opts := StatDuelMode{}.ComputeOptions(raw, ProposalContext{})
	assert.Equal(t, []string{"Patrick Mahomes", "Josh Allen"}, opts)
}
