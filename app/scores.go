package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/soocke/cyclewatch/domain/cycle"
)

// ReplayScores feeds a recorded smoothed-score trace through ctrl. Each
// CSV row is "seconds,score" with an optional third label column; a
// non-numeric first row is treated as a header. Useful for tuning
// sensitivity without decoding video again.
func ReplayScores(ctx context.Context, r io.Reader, ctrl *cycle.Controller) ([]cycle.Cycle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var out []cycle.Cycle
	for row := 1; ; row++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("scores row %d: %w", row, err)
		}
		if len(rec) < 2 {
			return out, fmt.Errorf("scores row %d: want at least 2 columns, got %d", row, len(rec))
		}
		secs, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		if err != nil {
			if row == 1 {
				continue
			}
			return out, fmt.Errorf("scores row %d: time: %w", row, err)
		}
		score, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return out, fmt.Errorf("scores row %d: score: %w", row, err)
		}
		label := ""
		if len(rec) > 2 {
			label = strings.TrimSpace(rec[2])
		}
		t := time.Duration(secs * float64(time.Second))
		if c, _ := ctrl.Feed(score, t, label); c != nil {
			out = append(out, *c)
		}
	}
}
