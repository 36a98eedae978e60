package processor

import (
	"sort"

	"github.com/LJTian/HeadlineHub/internal/config"
)

// Rank 按模式稳定排序并截断到 limit；none 模式原样返回，不截断。
// 返回新的切片，不修改入参。
func Rank(list []Headline, mode config.SortMode, limit int) []Headline {
	out := make([]Headline, len(list))
	copy(out, list)

	switch mode {
	case config.SortTopScore:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	case config.SortLatest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	default:
		return out
	}

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// RankFeed 对全局列表和每个分类使用同一种模式排序
func RankFeed(global []Headline, categories map[string][]Headline, mode config.SortMode, limit int) ([]Headline, map[string][]Headline) {
	rankedCategories := make(map[string][]Headline, len(categories))
	for name, list := range categories {
		rankedCategories[name] = Rank(list, mode, limit)
	}
	return Rank(global, mode, limit), rankedCategories
}
