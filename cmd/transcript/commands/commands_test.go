package commands

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ieee0824/whisper-go/model"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out.String()
}

func TestMkmodel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiny.wggm")
	out := run(t, "mkmodel", path,
		"--audio-ctx", "20", "--state", "8", "--heads", "2", "--layers", "1",
		"--text-ctx", "16", "--langs", "0", "--f16")
	if !strings.Contains(out, "wrote") {
		t.Errorf("output = %q", out)
	}
	m, err := model.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	hp := m.HParams()
	if hp.NAudioCtx != 20 || hp.NTextState != 8 || hp.NLangs != 0 || hp.NVocab != hp.VocabSize(256) {
		t.Errorf("HParams = %+v", hp)
	}
}

func TestLangs(t *testing.T) {
	out := run(t, "langs")
	if !strings.Contains(out, "en") || !strings.Contains(out, "japanese") {
		t.Errorf("langs output = %q", out)
	}
}
