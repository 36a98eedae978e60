package processor

import (
	"fmt"
	"math"
	"time"

	"github.com/LJTian/HeadlineHub/internal/config"
)

const freshnessWindowHours = 200

// Scorer 根据发布时间与互动数计算排序分。
// 时间无法解析（ok == false）时不计时间项，只保留互动分。
type Scorer interface {
	Score(published time.Time, ok bool, retweets, favorites int, now time.Time) int
}

// ReverseAge 偏向新内容：max(0, 200 - hoursAgo) + retweets/10 + favorites/5
type ReverseAge struct{}

func (ReverseAge) Score(published time.Time, ok bool, retweets, favorites int, now time.Time) int {
	recency := 0.0
	if ok {
		recency = math.Max(0, freshnessWindowHours-float64(hoursAgo(published, now)))
	}
	return int(recency + float64(retweets)/10 + float64(favorites)/5)
}

// AgeForward 越旧分越高，适合“长尾”模式：hoursAgo + retweets*1.5 + favorites
type AgeForward struct{}

func (AgeForward) Score(published time.Time, ok bool, retweets, favorites int, now time.Time) int {
	recency := 0.0
	if ok {
		recency = float64(hoursAgo(published, now))
	}
	return int(recency + float64(retweets)*1.5 + float64(favorites))
}

// hoursAgo 向下取整，未来时间按 0 处理
func hoursAgo(published, now time.Time) int {
	h := int(math.Floor(now.Sub(published).Hours()))
	if h < 0 {
		return 0
	}
	return h
}

func ScorerFor(policy config.ScoringPolicy) (Scorer, error) {
	switch policy {
	case config.ScoringReverseAge, "":
		return ReverseAge{}, nil
	case config.ScoringAgeForward:
		return AgeForward{}, nil
	default:
		return nil, fmt.Errorf("processor: unknown scoring policy %q", policy)
	}
}
