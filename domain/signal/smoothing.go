package signal

// DefaultAlpha is the EMA weight given to the newest raw score.
const DefaultAlpha = 0.2

// SignalState is the per-frame change score and its exponentially smoothed
// value. The zero value is the reset state.
type SignalState struct {
	Raw        float64 `json:"raw"`
	Smooth     float64 `json:"smooth"`
	PrevSmooth float64 `json:"prev_smooth"`
}

// Update folds raw into the moving average and returns the new state.
// Alpha outside (0,1] falls back to DefaultAlpha.
func (s SignalState) Update(raw, alpha float64) SignalState {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultAlpha
	}
	return SignalState{
		Raw:        raw,
		Smooth:     alpha*raw + (1-alpha)*s.Smooth,
		PrevSmooth: s.Smooth,
	}
}
