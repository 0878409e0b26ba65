package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func resolve(l Layout, move Move, selected string) Result {
	return Resolve(l, Request{Move: move, SelectedID: selected})
}

func TestResolve_WithinLane(t *testing.T) {
	l := BuildLayout([]Marker{
		marker("a1", "A", 0, 2),
		marker("a2", "A", 5, 6),
		marker("a3", "A", 9, 10),
	}, testConfig())

	assert.Equal(t, "a2", resolve(l, MoveRight, "a1").SelectedID)
	assert.Equal(t, "a1", resolve(l, MoveLeft, "a2").SelectedID)

	edge := resolve(l, MoveRight, "a3")
	assert.Equal(t, "a3", edge.SelectedID)
	assert.False(t, edge.Changed)

	assert.False(t, resolve(l, MoveLeft, "a1").Changed)
}

func TestResolve_AcrossLanes(t *testing.T) {
	cfg := testConfig()

	t.Run("overlapping marker in adjacent lane", func(t *testing.T) {
		l := BuildLayout([]Marker{
			marker("a1", "A", 10, 12),
			marker("b0", "B", 0, 2),
			marker("b1", "B", 9, 11),
			marker("c1", "C", 10, 11),
		}, cfg)
		got := resolve(l, MoveDown, "a1")
		assert.True(t, got.Changed)
		assert.Equal(t, "b1", got.SelectedID)
	})

	t.Run("skips lanes without nearby markers", func(t *testing.T) {
		l := BuildLayout([]Marker{
			marker("a1", "A", 10, 12),
			marker("b1", "B", 50, 55),
			marker("c1", "C", 10, 11),
		}, cfg)
		assert.Equal(t, "c1", resolve(l, MoveDown, "a1").SelectedID)
		assert.Equal(t, "a1", resolve(l, MoveUp, "c1").SelectedID)
	})

	t.Run("proximity within threshold", func(t *testing.T) {
		l := BuildLayout([]Marker{
			marker("a1", "A", 10, 12),
			marker("b1", "B", 14, 16),
			marker("b2", "B", 16.5, 18),
		}, cfg)
		assert.Equal(t, "b1", resolve(l, MoveDown, "a1").SelectedID)
	})

	t.Run("beyond threshold keeps selection", func(t *testing.T) {
		l := BuildLayout([]Marker{
			marker("a1", "A", 10, 12),
			marker("b1", "B", 15.5, 16),
			marker("c1", "C", 40, 41),
		}, cfg)
		got := resolve(l, MoveDown, "a1")
		assert.False(t, got.Changed)
		assert.Equal(t, "a1", got.SelectedID)
	})

	t.Run("overlap beats closer start", func(t *testing.T) {
		l := BuildLayout([]Marker{
			marker("a1", "A", 10, 20),
			marker("b1", "B", 8, 9.5),
			marker("b2", "B", 15, 16),
		}, cfg)
		assert.Equal(t, "b2", resolve(l, MoveDown, "a1").SelectedID)
	})

	t.Run("ties keep first in scan order", func(t *testing.T) {
		l := BuildLayout([]Marker{
			marker("a1", "A", 10, 11),
			marker("b1", "B", 8, 9),
			marker("b2", "B", 12, 13),
		}, cfg)
		assert.Equal(t, "b1", resolve(l, MoveDown, "a1").SelectedID)
	})

	t.Run("top lane up is a no-op", func(t *testing.T) {
		l := BuildLayout([]Marker{marker("a1", "A", 1), marker("b1", "B", 1)}, cfg)
		assert.False(t, resolve(l, MoveUp, "a1").Changed)
	})
}

func TestResolve_AcrossLanesAnyTime(t *testing.T) {
	l := BuildLayout([]Marker{
		marker("a1", "A", 10, 12),
		marker("b1", "B", 100, 101),
		marker("b2", "B", 40, 41),
		marker("c1", "C", 10, 11),
	}, testConfig())

	assert.Equal(t, "b2", resolve(l, MoveDownAnyTime, "a1").SelectedID)
	assert.Equal(t, "b2", resolve(l, MoveUpAnyTime, "c1").SelectedID)
	assert.False(t, resolve(l, MoveUpAnyTime, "a1").Changed)
}

func TestResolve_Chronological(t *testing.T) {
	l := BuildLayout([]Marker{
		marker("b1", "B", 1),
		marker("a1", "A", 2),
		marker("c1", "C", 3),
		shot("s1", 2.5),
	}, testConfig())

	assert.Equal(t, "a1", resolve(l, MoveNextChronological, "b1").SelectedID)
	assert.Equal(t, "c1", resolve(l, MoveNextChronological, "a1").SelectedID)
	assert.Equal(t, "b1", resolve(l, MovePrevChronological, "a1").SelectedID)

	last := resolve(l, MoveNextChronological, "c1")
	assert.False(t, last.Changed)
	assert.Equal(t, "c1", last.SelectedID)
}

func TestResolve_Unprocessed(t *testing.T) {
	cfg := testConfig()
	l := BuildLayout([]Marker{
		marker("a1", "A", 1),
		withTags(marker("a2", "A", 2), confirmedTag),
		marker("b1", "B", 3),
		marker("a3", "A", 4),
		withTags(marker("b2", "B", 5), rejectedTag),
	}, cfg)

	assert.Equal(t, "b1", resolve(l, MoveNextUnprocessed, "a1").SelectedID)
	assert.Equal(t, "a1", resolve(l, MoveNextUnprocessed, "a3").SelectedID, "wraps around")
	assert.Equal(t, "a3", resolve(l, MovePrevUnprocessed, "a1").SelectedID, "wraps backwards")

	assert.Equal(t, "a3", resolve(l, MoveNextUnprocessedInLane, "a1").SelectedID)
	assert.Equal(t, "a1", resolve(l, MoveNextUnprocessedInLane, "a3").SelectedID)
	assert.False(t, resolve(l, MoveNextUnprocessedInLane, "b1").Changed, "only unprocessed marker in lane")
}

func TestResolve_UnprocessedWithoutSelection(t *testing.T) {
	l := BuildLayout([]Marker{
		marker("a1", "A", 1),
		withTags(marker("a2", "A", 5), confirmedTag),
		marker("a3", "A", 9),
	}, testConfig())

	got := Resolve(l, Request{Move: MoveNextUnprocessed, CurrentTime: 4})
	assert.Equal(t, "a3", got.SelectedID)
	assert.True(t, got.Changed)

	got = Resolve(l, Request{Move: MovePrevUnprocessed, CurrentTime: 4})
	assert.Equal(t, "a1", got.SelectedID)

	got = Resolve(l, Request{Move: MoveNextUnprocessed, CurrentTime: 20})
	assert.Equal(t, "a1", got.SelectedID)
}

func TestResolve_Shots(t *testing.T) {
	l := BuildLayout([]Marker{
		marker("a1", "A", 1),
		shot("s2", 20),
		shot("s1", 10),
	}, testConfig())

	next := Resolve(l, Request{Move: MoveNextShot, SelectedID: "a1", CurrentTime: 10})
	require.NotNil(t, next.SeekTo)
	assert.Equal(t, 20.0, *next.SeekTo)
	assert.Equal(t, "a1", next.SelectedID)
	assert.False(t, next.Changed)

	prev := Resolve(l, Request{Move: MovePrevShot, CurrentTime: 15})
	require.NotNil(t, prev.SeekTo)
	assert.Equal(t, 10.0, *prev.SeekTo)

	assert.Nil(t, Resolve(l, Request{Move: MoveNextShot, CurrentTime: 30}).SeekTo)
}

func TestResolve_ShotBoundaryIsNeverSelected(t *testing.T) {
	l := BuildLayout([]Marker{marker("a1", "A", 1), shot("s1", 2)}, testConfig())

	got := resolve(l, MoveNextChronological, "a1")
	assert.False(t, got.Changed)

	got = resolve(l, MoveRight, "s1")
	assert.False(t, got.Changed)
	assert.Equal(t, "s1", got.SelectedID)
}

func TestResolve_EmptyLayoutIsNoOp(t *testing.T) {
	l := BuildLayout(nil, testConfig())

	for _, m := range moves {
		for _, sel := range []string{"", "missing"} {
			got := Resolve(l, Request{Move: m, SelectedID: sel, CurrentTime: 5})
			assert.False(t, got.Changed, "%s from %q", m, sel)
			assert.Equal(t, sel, got.SelectedID)
			assert.Nil(t, got.SeekTo)
		}
	}
}

func TestResolve_NeverReturnsUnknownID(t *testing.T) {
	cfg := testConfig()

	rapid.Check(t, func(t *rapid.T) {
		markers := genMarkers(t)
		l := BuildLayout(markers, cfg)

		ids := []string{"", "missing"}
		for _, m := range markers {
			ids = append(ids, m.ID)
		}
		sel := rapid.SampledFrom(ids).Draw(t, "selected")
		move := rapid.SampledFrom(moves).Draw(t, "move")
		now := float64(rapid.IntRange(0, 80).Draw(t, "now"))

		got := Resolve(l, Request{Move: move, SelectedID: sel, CurrentTime: now})
		if !got.Changed {
			if got.SelectedID != sel {
				t.Fatalf("unchanged result moved selection %q -> %q", sel, got.SelectedID)
			}
			return
		}
		if _, ok := l.Find(got.SelectedID); !ok {
			t.Fatalf("%s from %q selected unknown marker %q", move, sel, got.SelectedID)
		}
		if again := Resolve(l, Request{Move: move, SelectedID: sel, CurrentTime: now}); again != got {
			t.Fatalf("non-deterministic resolve: %+v vs %+v", got, again)
		}
	})
}

func TestReconcile(t *testing.T) {
	l := BuildLayout([]Marker{marker("a1", "A", 1), marker("b1", "B", 5), shot("s1", 3)}, testConfig())

	assert.Equal(t, "a1", Reconcile(l, "a1", 0))
	assert.Equal(t, "b1", Reconcile(l, "gone", 4))
	assert.Equal(t, "b1", Reconcile(l, "s1", 10), "falls back to last marker")
	assert.Equal(t, "", Reconcile(BuildLayout(nil, testConfig()), "a1", 0))
}

func TestParseMove(t *testing.T) {
	m, ok := ParseMove(" Shift+Up ")
	assert.True(t, ok)
	assert.Equal(t, MoveUpAnyTime, m)

	_, ok = ParseMove("sideways")
	assert.False(t, ok)
}
