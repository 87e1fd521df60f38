// internal/humanoid/simulator_test.go
package humanoid

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/ghostpay/internal/config"
	"github.com/xkilldash9x/ghostpay/internal/dom"
	"github.com/xkilldash9x/ghostpay/internal/dom/htmldoc"
	"github.com/xkilldash9x/ghostpay/internal/generation"
)

const fieldXPath = `//*[@id='email']`

func newFixture(t *testing.T) (*Simulator, *htmldoc.Document, dom.Element, *generation.Token, *generation.Recorder, *generation.Guard) {
	t.Helper()
	doc, err := htmldoc.ParseString(`<form><input id="email" value="stale"></form>`)
	require.NoError(t, err)
	els, err := doc.FindAll(context.Background(), fieldXPath)
	require.NoError(t, err)
	require.Len(t, els, 1)

	cfg := config.HumanoidConfig{KeyDelayMin: 50 * time.Millisecond, KeyDelayMax: 100 * time.Millisecond}
	token := &generation.Token{}
	rec := &generation.Recorder{}
	return NewWithSeed(cfg, zaptest.NewLogger(t), 42), doc, els[0], token, rec, generation.NewGuard(token, token.Next(), rec)
}

func TestType_EventSequence(t *testing.T) {
	sim, doc, el, _, rec, guard := newFixture(t)

	require.NoError(t, sim.Type(context.Background(), guard, el, "ab"))

	want := []htmldoc.RecordedEvent{
		{Target: fieldXPath, Type: dom.EventFocus},
		{Target: fieldXPath, Type: dom.EventInput},
		{Target: fieldXPath, Type: dom.EventKeyDown, Key: "a"},
		{Target: fieldXPath, Type: dom.EventKeyPress, Key: "a"},
		{Target: fieldXPath, Type: dom.EventInput},
		{Target: fieldXPath, Type: dom.EventKeyUp, Key: "a"},
		{Target: fieldXPath, Type: dom.EventChange},
		{Target: fieldXPath, Type: dom.EventKeyDown, Key: "b"},
		{Target: fieldXPath, Type: dom.EventKeyPress, Key: "b"},
		{Target: fieldXPath, Type: dom.EventInput},
		{Target: fieldXPath, Type: dom.EventKeyUp, Key: "b"},
		{Target: fieldXPath, Type: dom.EventChange},
		{Target: fieldXPath, Type: dom.EventBlur},
	}
	if diff := cmp.Diff(want, doc.Events()); diff != "" {
		t.Errorf("event sequence mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, rec.Count(), "one pause between two characters")
}

func TestType_ValueGrowsOneCharacterAtATime(t *testing.T) {
	sim, doc, el, _, _, guard := newFixture(t)

	var seen []string
	doc.Listen(func(ev htmldoc.RecordedEvent) {
		if ev.Type == dom.EventInput {
			v, err := doc.Value(fieldXPath)
			require.NoError(t, err)
			seen = append(seen, v)
		}
	})

	require.NoError(t, sim.Type(context.Background(), guard, el, "250"))
	assert.Equal(t, []string{"", "2", "25", "250"}, seen)
}

func TestType_JitterWithinBounds(t *testing.T) {
	sim, _, el, _, rec, guard := newFixture(t)

	require.NoError(t, sim.Type(context.Background(), guard, el, "9876543210"))

	durations := rec.Durations()
	require.Len(t, durations, 9)
	distinct := map[time.Duration]bool{}
	for _, d := range durations {
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 100*time.Millisecond)
		distinct[d] = true
	}
	assert.Greater(t, len(distinct), 1, "delays are randomized")
}

func TestType_Idempotent(t *testing.T) {
	sim, doc, el, _, _, guard := newFixture(t)
	ctx := context.Background()

	require.NoError(t, sim.Type(ctx, guard, el, "a@b.com"))
	require.NoError(t, sim.Type(ctx, guard, el, "a@b.com"))

	v, err := doc.Value(fieldXPath)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", v)
}

func TestType_DetectsRerender(t *testing.T) {
	sim, doc, el, _, _, guard := newFixture(t)

	rerendered := false
	doc.Listen(func(ev htmldoc.RecordedEvent) {
		if ev.Type == dom.EventKeyUp && !rerendered {
			rerendered = true
			require.NoError(t, doc.Rerender(fieldXPath))
		}
	})

	err := sim.Type(context.Background(), guard, el, "abc")
	assert.ErrorIs(t, err, ErrValueMismatch)
}

func TestType_StopsWhenSuperseded(t *testing.T) {
	sim, doc, el, token, rec, guard := newFixture(t)
	rec.OnSleep(func(int) { token.Next() })

	err := sim.Type(context.Background(), guard, el, "abc")
	assert.ErrorIs(t, err, generation.ErrStale)

	v, err := doc.Value(fieldXPath)
	require.NoError(t, err)
	assert.Equal(t, "a", v, "nothing is typed after the run is superseded")
}

func TestVerify(t *testing.T) {
	_, _, el, _, _, _ := newFixture(t)
	ctx := context.Background()

	assert.NoError(t, Verify(ctx, el, "stale"))
	assert.ErrorIs(t, Verify(ctx, el, "other"), ErrValueMismatch)
}
