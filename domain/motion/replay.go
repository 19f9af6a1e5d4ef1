package motion

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/soocke/cyclewatch/domain/capture"
)

// PoseRecord is one line of a landmark replay file. T is the media time in
// seconds.
type PoseRecord struct {
	T float64 `json:"t"`
	Landmarks
}

// ReplayEstimator serves landmarks recorded offline. For each frame it
// returns the latest record at or before the frame timestamp.
type ReplayEstimator struct {
	times   []time.Duration
	records []Landmarks
}

// NewReplayEstimator builds an estimator from records in any order.
func NewReplayEstimator(recs []PoseRecord) *ReplayEstimator {
	sorted := make([]PoseRecord, len(recs))
	copy(sorted, recs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].T < sorted[j].T })
	r := &ReplayEstimator{
		times:   make([]time.Duration, len(sorted)),
		records: make([]Landmarks, len(sorted)),
	}
	for i, rec := range sorted {
		r.times[i] = time.Duration(rec.T * float64(time.Second))
		r.records[i] = rec.Landmarks
	}
	return r
}

// ReadPoseRecords parses JSON Lines. Blank lines are skipped.
func ReadPoseRecords(rd io.Reader) ([]PoseRecord, error) {
	var out []PoseRecord
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		var rec PoseRecord
		if err := json.Unmarshal(b, &rec); err != nil {
			return nil, fmt.Errorf("motion: pose line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("motion: read poses: %w", err)
	}
	return out, nil
}

// LoadReplayEstimator reads a JSON Lines landmark file.
func LoadReplayEstimator(path string) (*ReplayEstimator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("motion: open %s: %w", path, err)
	}
	defer f.Close()
	recs, err := ReadPoseRecords(f)
	if err != nil {
		return nil, err
	}
	return NewReplayEstimator(recs), nil
}

// Len returns the number of records.
func (r *ReplayEstimator) Len() int { return len(r.records) }

// Estimate implements PoseEstimator.
func (r *ReplayEstimator) Estimate(ctx context.Context, frame capture.FrameSnapshot) (Landmarks, error) {
	if err := ctx.Err(); err != nil {
		return Landmarks{}, err
	}
	i := sort.Search(len(r.times), func(i int) bool { return r.times[i] > frame.Timestamp })
	if i == 0 {
		return Landmarks{}, ErrNoPose
	}
	return r.records[i-1], nil
}

var _ PoseEstimator = (*ReplayEstimator)(nil)
