// Package vocab maps token ids to text and classifies control tokens.
package vocab

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyVocabulary means the model has no text tokens to decode.
	ErrEmptyVocabulary = errors.New("vocabulary has no text tokens")
	// ErrUnknownTokenID is an id outside the vocabulary. A conforming
	// decoder never produces one.
	ErrUnknownTokenID = errors.New("unknown token id")
)

// Class is the role of a token.
type Class int

const (
	Text Class = iota
	EndOfText
	StartOfTranscript
	Language
	Translate
	Transcribe
	StartOfLM
	Previous
	NoSpeech
	NoTimestamps
	Timestamp
)

var classNames = [...]string{
	Text:              "text",
	EndOfText:         "endoftext",
	StartOfTranscript: "startoftranscript",
	Language:          "language",
	Translate:         "translate",
	Transcribe:        "transcribe",
	StartOfLM:         "startoflm",
	Previous:          "startofprev",
	NoSpeech:          "nospeech",
	NoTimestamps:      "notimestamps",
	Timestamp:         "timestamp",
}

func (c Class) String() string {
	if c < 0 || int(c) >= len(classNames) {
		return fmt.Sprintf("Class(%d)", int(c))
	}
	return classNames[c]
}

// TimestampStepMs is the time resolution of one timestamp token.
const TimestampStepMs = 20

// Vocab is the immutable token table of a model. Layout: text tokens, then
// EndOfText, StartOfTranscript, one token per language, Translate,
// Transcribe, StartOfLM, Previous, NoSpeech, NoTimestamps and finally
// nTimestamps timestamp tokens.
type Vocab struct {
	tokens      [][]byte
	nLangs      int
	nTimestamps int
}

// New builds a vocabulary from the text tokens of a model.
func New(tokens [][]byte, nLangs, nTimestamps int) (*Vocab, error) {
	if len(tokens) == 0 {
		return nil, ErrEmptyVocabulary
	}
	if nLangs < 0 || nLangs > len(languages) {
		return nil, fmt.Errorf("vocab: %d languages, table has %d", nLangs, len(languages))
	}
	if nTimestamps < 1 {
		return nil, fmt.Errorf("vocab: %d timestamp tokens", nTimestamps)
	}
	return &Vocab{tokens: tokens, nLangs: nLangs, nTimestamps: nTimestamps}, nil
}

// Size returns the total number of tokens.
func (v *Vocab) Size() int { return v.TimestampBegin() + v.nTimestamps }

// NumText returns the number of ordinary text tokens.
func (v *Vocab) NumText() int { return len(v.tokens) }

// NumLanguages returns the number of language tokens.
func (v *Vocab) NumLanguages() int { return v.nLangs }

// NumTimestamps returns the number of timestamp tokens.
func (v *Vocab) NumTimestamps() int { return v.nTimestamps }

func (v *Vocab) EOT() int { return len(v.tokens) }
func (v *Vocab) SOT() int { return len(v.tokens) + 1 }

// LanguageToken returns the token of language id, or false if the model
// has no token for it.
func (v *Vocab) LanguageToken(lang int) (int, bool) {
	if lang < 0 || lang >= v.nLangs {
		return 0, false
	}
	return v.SOT() + 1 + lang, true
}

func (v *Vocab) Translate() int      { return v.SOT() + 1 + v.nLangs }
func (v *Vocab) Transcribe() int     { return v.Translate() + 1 }
func (v *Vocab) StartOfLM() int      { return v.Translate() + 2 }
func (v *Vocab) Prev() int           { return v.Translate() + 3 }
func (v *Vocab) NoSpeech() int       { return v.Translate() + 4 }
func (v *Vocab) NoTimestamps() int   { return v.Translate() + 5 }
func (v *Vocab) TimestampBegin() int { return v.Translate() + 6 }

// Class returns the role of id.
func (v *Vocab) Class(id int) (Class, error) {
	switch {
	case id < 0 || id >= v.Size():
		return 0, fmt.Errorf("%w: %d", ErrUnknownTokenID, id)
	case id < v.EOT():
		return Text, nil
	case id == v.EOT():
		return EndOfText, nil
	case id == v.SOT():
		return StartOfTranscript, nil
	case id < v.Translate():
		return Language, nil
	case id >= v.TimestampBegin():
		return Timestamp, nil
	}
	return Class(int(Translate) + id - v.Translate()), nil
}

// IsText reports whether id is an ordinary text token.
func (v *Vocab) IsText(id int) bool { return id >= 0 && id < len(v.tokens) }

// IsTimestamp reports whether id is a timestamp token.
func (v *Vocab) IsTimestamp(id int) bool {
	return id >= v.TimestampBegin() && id < v.Size()
}

// TimestampMs returns the offset encoded by a timestamp token.
func (v *Vocab) TimestampMs(id int) (int64, bool) {
	if !v.IsTimestamp(id) {
		return 0, false
	}
	return int64(id-v.TimestampBegin()) * TimestampStepMs, true
}

// Language returns the language id of a language token.
func (v *Vocab) Language(id int) (int, bool) {
	if id <= v.SOT() || id >= v.Translate() {
		return 0, false
	}
	return id - v.SOT() - 1, true
}

// Text returns the bytes of a text token, or the printable form of a
// control token such as "<|endoftext|>", "<|de|>" or "<|1.20|>".
func (v *Vocab) Text(id int) ([]byte, error) {
	c, err := v.Class(id)
	if err != nil {
		return nil, err
	}
	switch c {
	case Text:
		return v.tokens[id], nil
	case Language:
		lang, _ := v.Language(id)
		code, _ := LangStr(lang)
		return []byte("<|" + code + "|>"), nil
	case Timestamp:
		ms, _ := v.TimestampMs(id)
		return []byte(fmt.Sprintf("<|%d.%02d|>", ms/1000, ms%1000/10)), nil
	}
	return []byte("<|" + c.String() + "|>"), nil
}

// Decode concatenates the bytes of the text tokens in ids, skipping control
// tokens. Byte sequences that are not valid UTF-8 are replaced.
func (v *Vocab) Decode(ids []int) (string, error) {
	var b strings.Builder
	for _, id := range ids {
		if id < 0 || id >= v.Size() {
			return "", fmt.Errorf("%w: %d", ErrUnknownTokenID, id)
		}
		if v.IsText(id) {
			b.Write(v.tokens[id])
		}
	}
	return strings.ToValidUTF8(b.String(), "�"), nil
}
