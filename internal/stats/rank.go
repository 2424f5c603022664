package stats

import (
	"math"
	"sort"
)

// Ranked 排名结果，Rank 从 1 开始
type Ranked[T any] struct {
	Rank int
	Item T
}

// RankBy 按分数降序稳定排序，分数相同保持输入顺序，名次为排序后的位置
func RankBy[T any](items []T, score func(T) float64) []Ranked[T] {
	sorted := make([]T, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return score(sorted[i]) > score(sorted[j])
	})

	ranked := make([]Ranked[T], len(sorted))
	for i, item := range sorted {
		ranked[i] = Ranked[T]{Rank: i + 1, Item: item}
	}
	return ranked
}

// Top 在完整排名之后截取前 k 名，k<=0 表示不截取
func Top[T any](ranked []Ranked[T], k int) []Ranked[T] {
	if k <= 0 || k >= len(ranked) {
		return ranked
	}
	return ranked[:k]
}

// Find 返回满足条件的第一个排名下标，没有时返回 -1
func Find[T any](ranked []Ranked[T], match func(T) bool) int {
	for i, r := range ranked {
		if match(r.Item) {
			return i
		}
	}
	return -1
}

// Neighbours 返回 idx 前后各最多 span 个排名
func Neighbours[T any](ranked []Ranked[T], idx, span int) (above, below []Ranked[T]) {
	if idx < 0 || idx >= len(ranked) {
		return nil, nil
	}
	start := max(0, idx-span)
	end := min(len(ranked), idx+span+1)
	return ranked[start:idx], ranked[idx+1 : end]
}

// Percentile 名次对应的百分位，第一名为 100
func Percentile(rank, total int) int {
	if total <= 0 || rank <= 0 {
		return 0
	}
	return int(math.Round((1 - float64(rank-1)/float64(total)) * 100))
}
