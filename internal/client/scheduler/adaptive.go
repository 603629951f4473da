package scheduler

import "time"

const sessionGap = 5 * time.Minute

// change is one entry of the edit history.
type change struct {
	At            time.Time
	Size          int
	SinceLastSave time.Duration
}

// Patterns are the learned editing habits of the user.
type Patterns struct {
	AvgSessionLength float64       `json:"avgEditSessionLength"`
	AvgTimeBetween   time.Duration `json:"avgTimeBetweenEdits"`
	TypicalSize      float64       `json:"typicalChangeSize"`
	SessionCount     int           `json:"sessionCount"`
}

// learnPatterns groups history into sessions split at gaps of sessionGap or
// more. It reports false when there is too little history.
func learnPatterns(history []change) (Patterns, bool) {
	if len(history) < 5 {
		return Patterns{}, false
	}

	var sessions [][]change
	current := []change{history[0]}
	totalSize := history[0].Size
	for i := 1; i < len(history); i++ {
		c := history[i]
		totalSize += c.Size
		if c.At.Sub(history[i-1].At) < sessionGap {
			current = append(current, c)
			continue
		}
		sessions = append(sessions, current)
		current = []change{c}
	}
	sessions = append(sessions, current)

	var edits int
	var between time.Duration
	for _, s := range sessions {
		edits += len(s)
		for i := 1; i < len(s); i++ {
			between += s[i].At.Sub(s[i-1].At)
		}
	}

	p := Patterns{
		AvgSessionLength: float64(edits) / float64(len(sessions)),
		TypicalSize:      float64(totalSize) / float64(edits),
		SessionCount:     len(sessions),
	}
	if gaps := edits - len(sessions); gaps > 0 {
		p.AvgTimeBetween = between / time.Duration(gaps)
	}
	return p, true
}

// retune derives the local-save and cloud-sync delays from p. Fast typists
// get a longer local debounce; short sessions sync sooner.
func retune(p Patterns, local, cloud time.Duration) (time.Duration, time.Duration) {
	if p.SessionCount < 3 {
		return local, cloud
	}

	switch {
	case p.AvgTimeBetween > 0 && p.AvgTimeBetween < time.Second:
		local = min(2*time.Second, 2*p.AvgTimeBetween)
	case p.AvgTimeBetween > 5*time.Second:
		local = max(500*time.Millisecond, p.AvgTimeBetween/5)
	}

	switch {
	case p.AvgSessionLength < 10:
		cloud = max(10*time.Second, time.Duration(p.AvgSessionLength*float64(time.Second)))
	case p.AvgSessionLength > 50:
		cloud = min(time.Minute, time.Duration(p.AvgSessionLength*float64(500*time.Millisecond)))
	}
	return local, cloud
}
