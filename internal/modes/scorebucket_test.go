package modes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gfracaro/wager-settlement-poc/pkg/contracts/gamedoc"
)

func TestBucketForDiff(t *testing.T) {
	assert.Equal(t, "0-3", BucketForDiff(0))
	assert.Equal(t, "0-3", BucketForDiff(3))
	assert.Equal(t, "4-10", BucketForDiff(4))
	assert.Equal(t, "4-10", BucketForDiff(10))
	assert.Equal(t, "11-25", BucketForDiff(11))
	assert.Equal(t, "11-25", BucketForDiff(25))
	assert.Equal(t, "26+", BucketForDiff(26))
	assert.Equal(t, "26+", BucketForDiff(60))
}

func TestBucketForDiff_UsesAbsoluteValue(t *testing.T) {
	assert.Equal(t, "4-10", BucketForDiff(-7))
}

func newBucketValidator(e *env) Validator {
	return ScoreBucketMode{}.NewValidator(e.deps())
}

func TestScoreBucket_ResolvesAtFinal(t *testing.T) {
	e := newEnv(t)
	v := newBucketValidator(e)
	e.addPending("b1", "g1", "score_bucket", nil)

	final := testDoc("g1", gamedoc.StatusFinal, 31, 17)
	v.OnGameUpdate(context.Background(), "g1", final)

	require.Len(t, e.queue.wins, 1)
	assert.Equal(t, "11-25", e.queue.wins[0].choice)
	assert.Empty(t, e.queue.washes)
}

func TestScoreBucket_TieGoesToLowestBucket(t *testing.T) {
	e := newEnv(t)
	v := newBucketValidator(e)
	e.addPending("b1", "g1", "score_bucket", nil)

	// empate no placar ainda cai na faixa 0-3; o modo nunca anula por push
	final := testDoc("g1", gamedoc.StatusFinal, 20, 20)
	v.OnGameUpdate(context.Background(), "g1", final)

	require.Len(t, e.queue.wins, 1)
	assert.Equal(t, "0-3", e.queue.wins[0].choice)
}

func TestScoreBucket_NothingBeforeFinal(t *testing.T) {
	e := newEnv(t)
	v := newBucketValidator(e)
	e.addPending("b1", "g1", "score_bucket", nil)

	v.OnGameUpdate(context.Background(), "g1", testDoc("g1", gamedoc.StatusInProgress, 31, 3))

	assert.Empty(t, e.queue.wins)
	assert.Empty(t, e.queue.washes)
}

func TestScoreBucket_KernelReadyCatchesUp(t *testing.T) {
	e := newEnv(t)
	v := newBucketValidator(e)
	e.addPending("b1", "g1", "score_bucket", nil)
	e.docs["g1"] = testDoc("g1", gamedoc.StatusFinal, 45, 10)

	v.OnKernelReady(context.Background())

	require.Len(t, e.queue.wins, 1)
	assert.Equal(t, "26+", e.queue.wins[0].choice)
}

func TestScoreBucketMode_OptionsAreExhaustive(t *testing.T) {
	opts := ScoreBucketMode{}.ComputeOptions(nil, ProposalContext{})
	assert.Equal(t, []string{"0-3", "4-10", "11-25", "26+"}, opts)
}
