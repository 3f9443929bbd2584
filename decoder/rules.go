package decoder

import (
	"bytes"
	"math"

	"github.com/ieee0824/whisper-go/internal/mathutil"
	"github.com/ieee0824/whisper-go/vocab"
)

var negInf = float32(math.Inf(-1))

// logitFilter applies temperature, repetition penalty, suppression and the
// timestamp rules to raw logits before selection.
type logitFilter struct {
	voc         *vocab.Vocab
	temperature float64
	repetition  float64
	suppress    []int // never sampled
	blank       []int // suppressed at the first step
	maxInitial  int   // last timestamp index allowed first
	scratch     []float32
}

func newLogitFilter(voc *vocab.Vocab, opts Options) *logitFilter {
	f := &logitFilter{
		voc:         voc,
		temperature: opts.Temperature,
		repetition:  opts.RepetitionPenalty,
		maxInitial:  int(opts.MaxInitialTimestamp.Milliseconds() / vocab.TimestampStepMs),
		scratch:     make([]float32, voc.Size()),
	}
	for id := voc.SOT(); id < voc.TimestampBegin(); id++ {
		f.suppress = append(f.suppress, id)
	}
	if opts.SuppressBlank {
		f.blank = append(f.blank, voc.EOT())
		for id := 0; id < voc.NumText(); id++ {
			b, _ := voc.Text(id)
			if len(bytes.TrimSpace(b)) == 0 {
				f.blank = append(f.blank, id)
			}
		}
	}
	return f
}

// apply rewrites logits in place given the tokens generated so far in this
// window, prompt excluded.
func (f *logitFilter) apply(logits []float32, gen []int) {
	if f.temperature > 0 && f.temperature != 1 {
		inv := float32(1 / f.temperature)
		for i := range logits {
			logits[i] *= inv
		}
	}
	if f.repetition > 0 && f.repetition != 1 {
		f.penalize(logits, gen)
	}
	for _, id := range f.suppress {
		logits[id] = negInf
	}
	if len(gen) == 0 {
		for _, id := range f.blank {
			logits[id] = negInf
		}
	}
	f.timestamps(logits, gen)
}

// penalize lowers the logits of text tokens already generated: positive
// logits are divided by the penalty, negative ones multiplied.
func (f *logitFilter) penalize(logits []float32, gen []int) {
	p := float32(f.repetition)
	seen := make(map[int]bool, len(gen))
	for _, id := range gen {
		if !f.voc.IsText(id) || seen[id] {
			continue
		}
		seen[id] = true
		if logits[id] > 0 {
			logits[id] /= p
		} else {
			logits[id] *= p
		}
	}
}

func (f *logitFilter) timestamps(logits []float32, gen []int) {
	begin := f.voc.TimestampBegin()
	eot := f.voc.EOT()

	if len(gen) == 0 {
		mathutil.Fill(logits[:begin], negInf)
		if last := begin + f.maxInitial + 1; last < len(logits) {
			mathutil.Fill(logits[last:], negInf)
		}
		return
	}

	// Timestamps come in pairs: after a closing timestamp the next one opens
	// a segment, after an opening pair text must follow.
	n := len(gen)
	lastTs := f.voc.IsTimestamp(gen[n-1])
	prevTs := n < 2 || f.voc.IsTimestamp(gen[n-2])
	if lastTs {
		if prevTs {
			mathutil.Fill(logits[begin:], negInf)
		} else {
			mathutil.Fill(logits[:eot], negInf)
		}
	}

	// Never decrease; segments that close must have nonzero length.
	for i := n - 1; i >= 0; i-- {
		if !f.voc.IsTimestamp(gen[i]) {
			continue
		}
		floor := gen[i] + 1
		if lastTs && !prevTs {
			floor = gen[i]
		}
		mathutil.Fill(logits[begin:min(floor, len(logits))], negInf)
		break
	}

	// Force a timestamp when their summed probability beats every text token.
	mathutil.LogSoftmax(f.scratch, logits)
	tsMass := mathutil.LogSumExp(f.scratch[begin:])
	textMax := math.Inf(-1)
	for _, v := range f.scratch[:begin] {
		textMax = math.Max(textMax, float64(v))
	}
	if tsMass > textMax {
		mathutil.Fill(logits[:begin], negInf)
	}
}
