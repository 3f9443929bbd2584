package whisper

import "github.com/ieee0824/whisper-go/vocab"

// LangID returns the id of a language code or English name.
func LangID(lang string) (int, bool) { return vocab.LangID(lang) }

// LangStr returns the short code of a language id.
func LangStr(id int) (string, bool) { return vocab.LangStr(id) }

// LangMaxID returns the largest language id.
func LangMaxID() int { return vocab.LangMaxID() }
