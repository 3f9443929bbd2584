package decoder

import (
	"fmt"

	"github.com/ieee0824/whisper-go/vocab"
)

type state int

const (
	awaitingLanguage state = iota
	generating
	segmentBoundary
	done
)

func (s state) String() string {
	switch s {
	case awaitingLanguage:
		return "awaiting_language"
	case generating:
		return "generating"
	case segmentBoundary:
		return "segment_boundary"
	case done:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// segmenter turns the generated token stream into segments. It starts
// awaiting the language token; the first other token means the language was
// fixed up front. A timestamp after text closes [previous timestamp, this
// timestamp]; text left open at EndOfText closes at the window end.
type segmenter struct {
	voc      *vocab.Vocab
	windowMs int64
	state    state
	lang     int
	startMs  int64
	text     []int
	segments []Segment
}

func newSegmenter(voc *vocab.Vocab) *segmenter {
	return &segmenter{
		voc:      voc,
		windowMs: int64(voc.NumTimestamps()-1) * vocab.TimestampStepMs,
		state:    awaitingLanguage,
		lang:     AutoLanguage,
	}
}

// startSegmenter returns a segmenter that has consumed the token of lang
// when the vocabulary has one.
func startSegmenter(voc *vocab.Vocab, lang int) *segmenter {
	s := newSegmenter(voc)
	if tok, ok := voc.LanguageToken(lang); ok {
		s.push(tok) // never fails while awaiting the language
	}
	return s
}

// push consumes one token and returns the segment it closed, if any.
func (s *segmenter) push(tok int) (*Segment, error) {
	switch s.state {
	case done:
		return nil, fmt.Errorf("decode: token %d after end of text", tok)
	case awaitingLanguage:
		s.state = generating
		if lang, ok := s.voc.Language(tok); ok {
			s.lang = lang
			return nil, nil
		}
	}
	s.state = generating
	switch {
	case s.voc.IsTimestamp(tok):
		ms, _ := s.voc.TimestampMs(tok)
		var seg *Segment
		if len(s.text) > 0 {
			var err error
			if seg, err = s.close(ms); err != nil {
				return nil, err
			}
			s.state = segmentBoundary
		}
		s.startMs = ms
		return seg, nil
	case s.voc.IsText(tok):
		s.text = append(s.text, tok)
		return nil, nil
	case tok == s.voc.EOT():
		s.state = done
		if len(s.text) == 0 {
			return nil, nil
		}
		return s.close(s.windowMs)
	}
	c, err := s.voc.Class(tok)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("decode: unexpected %v token %d", c, tok)
}

func (s *segmenter) close(endMs int64) (*Segment, error) {
	text, err := s.voc.Decode(s.text)
	if err != nil {
		return nil, err
	}
	seg := Segment{StartMs: s.startMs, EndMs: endMs, Tokens: s.text, Text: text}
	s.segments = append(s.segments, seg)
	s.text = nil
	return &seg, nil
}

// finish stops the stream without EndOfText. Open text is dropped.
func (s *segmenter) finish() []Segment {
	s.text = nil
	s.state = done
	return s.segments
}

// segmentsOf runs a segmenter over a complete token sequence decoded in
// language lang.
func segmentsOf(voc *vocab.Vocab, lang int, tokens []int) ([]Segment, error) {
	s := startSegmenter(voc, lang)
	for _, tok := range tokens {
		if _, err := s.push(tok); err != nil {
			return nil, err
		}
	}
	return s.finish(), nil
}
