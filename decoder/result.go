package decoder

// Segment is a span of text with offsets relative to the window start.
type Segment struct {
	StartMs int64
	EndMs   int64
	Tokens  []int // text tokens only
	Text    string
}

// Result holds the decoding output of one window.
type Result struct {
	Tokens       []int // generated tokens, timestamps and EndOfText included
	Segments     []Segment
	Language     int     // detected or requested language, AutoLanguage if none
	LanguageProb float64 // probability of the detected language, 1 when given
	SumLogProb   float64
	BudgetHit    bool // the token budget ran out before EndOfText
	Cancelled    bool // the context was cancelled mid-window
}

// AvgLogProb returns the mean log-probability per generated token.
func (r *Result) AvgLogProb() float64 {
	if len(r.Tokens) == 0 {
		return 0
	}
	return r.SumLogProb / float64(len(r.Tokens))
}

// LastEndMs returns the end of the last completed segment and whether any
// segment was completed.
func (r *Result) LastEndMs() (int64, bool) {
	if len(r.Segments) == 0 {
		return 0, false
	}
	return r.Segments[len(r.Segments)-1].EndMs, true
}
