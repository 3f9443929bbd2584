package vocab

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testVocab(t *testing.T) *Vocab {
	t.Helper()
	v, err := New([][]byte{[]byte("Hello"), []byte(" world"), []byte("!")}, 3, 5)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v
}

func TestLayout(t *testing.T) {
	v := testVocab(t)
	tests := []struct {
		name string
		got  int
		want int
	}{
		{"EOT", v.EOT(), 3},
		{"SOT", v.SOT(), 4},
		{"Translate", v.Translate(), 8},
		{"Transcribe", v.Transcribe(), 9},
		{"StartOfLM", v.StartOfLM(), 10},
		{"Prev", v.Prev(), 11},
		{"NoSpeech", v.NoSpeech(), 12},
		{"NoTimestamps", v.NoTimestamps(), 13},
		{"TimestampBegin", v.TimestampBegin(), 14},
		{"Size", v.Size(), 19},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, tt.got, tt.want)
		}
	}
	if id, ok := v.LanguageToken(2); !ok || id != 7 {
		t.Errorf("LanguageToken(2) = %d, %v, want 7, true", id, ok)
	}
	if _, ok := v.LanguageToken(3); ok {
		t.Error("LanguageToken(3) ok for a 3-language model")
	}
}

func TestClass(t *testing.T) {
	v := testVocab(t)
	want := []Class{
		Text, Text, Text, EndOfText, StartOfTranscript, Language, Language, Language,
		Translate, Transcribe, StartOfLM, Previous, NoSpeech, NoTimestamps,
		Timestamp, Timestamp, Timestamp, Timestamp, Timestamp,
	}
	for id, w := range want {
		c, err := v.Class(id)
		if err != nil {
			t.Fatalf("Class(%d): %v", id, err)
		}
		if c != w {
			t.Errorf("Class(%d) = %v, want %v", id, c, w)
		}
	}
	for _, id := range []int{-1, v.Size()} {
		if _, err := v.Class(id); !errors.Is(err, ErrUnknownTokenID) {
			t.Errorf("Class(%d) err = %v, want ErrUnknownTokenID", id, err)
		}
	}
}

func TestText(t *testing.T) {
	v := testVocab(t)
	tests := []struct {
		id   int
		want string
	}{
		{1, " world"},
		{v.EOT(), "<|endoftext|>"},
		{v.SOT() + 2, "<|de|>"},
		{v.Transcribe(), "<|transcribe|>"},
		{v.TimestampBegin(), "<|0.00|>"},
		{v.TimestampBegin() + 3, "<|0.06|>"},
	}
	for _, tt := range tests {
		got, err := v.Text(tt.id)
		if err != nil {
			t.Fatalf("Text(%d): %v", tt.id, err)
		}
		if string(got) != tt.want {
			t.Errorf("Text(%d) = %q, want %q", tt.id, got, tt.want)
		}
	}
	if _, err := v.Text(v.Size()); !errors.Is(err, ErrUnknownTokenID) {
		t.Errorf("Text(size) err = %v, want ErrUnknownTokenID", err)
	}
}

func TestDecode(t *testing.T) {
	v := testVocab(t)
	got, err := v.Decode([]int{v.SOT(), v.TimestampBegin(), 0, 1, 2, v.TimestampBegin() + 1, v.EOT()})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != "Hello world!" {
		t.Errorf("Decode = %q, want %q", got, "Hello world!")
	}
	if _, err := v.Decode([]int{99}); !errors.Is(err, ErrUnknownTokenID) {
		t.Errorf("Decode(99) err = %v, want ErrUnknownTokenID", err)
	}
}

func TestDecode_InvalidUTF8(t *testing.T) {
	v, err := New([][]byte{{0xe3, 0x81}, {0x82}}, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	whole, _ := v.Decode([]int{0, 1})
	if whole != "あ" {
		t.Errorf("Decode joined = %q, want %q", whole, "あ")
	}
	part, _ := v.Decode([]int{0})
	if !strings.Contains(part, "�") {
		t.Errorf("Decode partial = %q, want replacement character", part)
	}
}

func TestTimestampMs(t *testing.T) {
	v := testVocab(t)
	if ms, ok := v.TimestampMs(v.TimestampBegin() + 4); !ok || ms != 80 {
		t.Errorf("TimestampMs = %d, %v, want 80, true", ms, ok)
	}
	if _, ok := v.TimestampMs(0); ok {
		t.Error("TimestampMs(text) ok")
	}
}

func TestNew_Empty(t *testing.T) {
	if _, err := New(nil, 0, 1); !errors.Is(err, ErrEmptyVocabulary) {
		t.Errorf("err = %v, want ErrEmptyVocabulary", err)
	}
}

func TestLoadTokens(t *testing.T) {
	const src = "# tokens\n0\tHello\n1\t\" world\"\n2\t\"\\n\"\n"
	got, err := LoadTokens(strings.NewReader(src))
	if err != nil {
		t.Fatalf("LoadTokens: %v", err)
	}
	want := [][]byte{[]byte("Hello"), []byte(" world"), []byte("\n")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tokens mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadTokens_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", "# nothing\n"},
		{"gap", "0\ta\n2\tb\n"},
		{"no tab", "0 a\n"},
		{"bad id", "x\ta\n"},
		{"bad quote", "0\t\"a\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadTokens(strings.NewReader(tt.src)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
