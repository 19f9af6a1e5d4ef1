package cycle

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary aggregates a list of cycles for reporting.
type Summary struct {
	Count       int            `json:"count"`
	Over        int            `json:"over"`
	Abnormal    int            `json:"abnormal"`
	Mean        time.Duration  `json:"mean"`
	StdDev      time.Duration  `json:"std_dev"`
	Min         time.Duration  `json:"min"`
	Max         time.Duration  `json:"max"`
	Total       time.Duration  `json:"total"`
	Takt        time.Duration  `json:"takt"`
	Utilization float64        `json:"utilization"`
	Labels      map[string]int `json:"labels"`
}

// Summarize computes duration statistics over cycles. armed is the time the
// session spent running; Utilization is the share of it covered by cycles.
func Summarize(cycles []Cycle, takt, armed time.Duration) Summary {
	s := Summary{Count: len(cycles), Takt: takt, Labels: map[string]int{}}
	if len(cycles) == 0 {
		return s
	}
	secs := make([]float64, len(cycles))
	for i, c := range cycles {
		secs[i] = c.Duration.Seconds()
		switch c.Status {
		case StatusOver:
			s.Over++
		case StatusAbnormal:
			s.Abnormal++
		}
		label := c.Label
		if label == "" {
			label = "unlabeled"
		}
		s.Labels[label]++
	}
	s.Mean = seconds(stat.Mean(secs, nil))
	if len(secs) > 1 {
		s.StdDev = seconds(stat.StdDev(secs, nil))
	}
	s.Min = seconds(floats.Min(secs))
	s.Max = seconds(floats.Max(secs))
	s.Total = seconds(floats.Sum(secs))
	if armed > 0 {
		s.Utilization = min(1, s.Total.Seconds()/armed.Seconds())
	}
	return s
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
