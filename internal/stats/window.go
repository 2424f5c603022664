package stats

import (
	"fmt"
	"time"
)

// Timeframe 排行榜时间范围
type Timeframe string

const (
	AllTime   Timeframe = "all_time"
	ThisWeek  Timeframe = "this_week"
	ThisMonth Timeframe = "this_month"
)

func ParseTimeframe(s string) (Timeframe, error) {
	switch tf := Timeframe(s); tf {
	case "":
		return AllTime, nil
	case AllTime, ThisWeek, ThisMonth:
		return tf, nil
	default:
		return "", fmt.Errorf("unknown timeframe %q", s)
	}
}

// Start 返回时间窗口的起点（含）；all_time 返回 false
func (tf Timeframe) Start(now time.Time) (time.Time, bool) {
	switch tf {
	case ThisWeek:
		return WeekStart(now), true
	case ThisMonth:
		y, m, _ := now.Date()
		return time.Date(y, m, 1, 0, 0, 0, 0, now.Location()), true
	default:
		return time.Time{}, false
	}
}

// WeekStart 返回 t 当天或之前最近的周一 00:00:00
func WeekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, t.Location())
}

// InWindow 过滤掉开始时间早于窗口起点的记录
func InWindow(attempts []Attempt, tf Timeframe, now time.Time) []Attempt {
	start, ok := tf.Start(now)
	if !ok {
		return attempts
	}
	kept := make([]Attempt, 0, len(attempts))
	for _, a := range attempts {
		if !a.StartedAt.Before(start) {
			kept = append(kept, a)
		}
	}
	return kept
}
