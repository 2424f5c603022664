package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type player struct {
	name  string
	score int
}

func byScore(p player) float64 { return float64(p.score) }

func TestRankBy_StableTieBreak(t *testing.T) {
	players := []player{{"a", 50}, {"b", 80}, {"c", 80}, {"d", 30}}

	ranked := RankBy(players, byScore)

	ranks := make(map[string]int)
	for _, r := range ranked {
		ranks[r.Item.name] = r.Rank
	}
	assert.Equal(t, []int{3, 1, 2, 4}, []int{ranks["a"], ranks["b"], ranks["c"], ranks["d"]})
	// 输入不被修改
	assert.Equal(t, "a", players[0].name)
}

func TestTop_TruncatesAfterRanking(t *testing.T) {
	players := []player{{"a", 10}, {"b", 40}, {"c", 20}, {"d", 30}}
	ranked := RankBy(players, byScore)

	top := Top(ranked, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "b", top[0].Item.name)
	assert.Equal(t, "d", top[1].Item.name)

	idx := Find(ranked, func(p player) bool { return p.name == "a" })
	assert.Equal(t, 4, ranked[idx].Rank)

	assert.Len(t, Top(ranked, 0), 4)
	assert.Len(t, Top(ranked, 10), 4)
	assert.Equal(t, -1, Find(ranked, func(p player) bool { return p.name == "z" }))
}

func TestNeighbours(t *testing.T) {
	var players []player
	for i := 0; i < 10; i++ {
		players = append(players, player{name: string(rune('a' + i)), score: 100 - i})
	}
	ranked := RankBy(players, byScore)

	above, below := Neighbours(ranked, 1, 3)
	assert.Len(t, above, 1)
	assert.Len(t, below, 3)
	assert.Equal(t, 1, above[0].Rank)
	assert.Equal(t, 3, below[0].Rank)

	above, below = Neighbours(ranked, 9, 3)
	assert.Len(t, above, 3)
	assert.Empty(t, below)

	above, below = Neighbours(ranked, 20, 3)
	assert.Nil(t, above)
	assert.Nil(t, below)
}

func TestPercentile(t *testing.T) {
	assert.Equal(t, 100, Percentile(1, 4))
	assert.Equal(t, 25, Percentile(4, 4))
	assert.Equal(t, 67, Percentile(2, 3))
	assert.Equal(t, 0, Percentile(1, 0))
}
