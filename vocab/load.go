package vocab

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// LoadTokens reads a token list from a tab-separated file.
// Format: id<TAB>token, ids ascending from 0 without gaps. A token starting
// with a double quote is unquoted with Go syntax, so leading spaces and
// control bytes can be written as " hello" or "\n".
func LoadTokens(r io.Reader) ([][]byte, error) {
	var tokens [][]byte
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "\t", 2)
		if len(parts) < 2 {
			return nil, fmt.Errorf("line %d: expected 2 tab-separated fields, got %d", lineNum, len(parts))
		}
		id, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: bad id: %w", lineNum, err)
		}
		if id != len(tokens) {
			return nil, fmt.Errorf("line %d: id %d, want %d", lineNum, id, len(tokens))
		}
		tok := parts[1]
		if strings.HasPrefix(tok, `"`) {
			tok, err = strconv.Unquote(tok)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad quoted token: %w", lineNum, err)
			}
		}
		tokens = append(tokens, []byte(tok))
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, ErrEmptyVocabulary
	}
	return tokens, nil
}

// LoadTokensFile is a convenience wrapper that opens a file path.
func LoadTokensFile(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadTokens(f)
}
