package testutil

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode"
)

// LoadStream decodes a hex fixture from testdata into raw stream bytes.
// Whitespace and '#' comments are ignored so fixtures can be annotated.
func LoadStream(t *testing.T, rel string) []byte {
	t.Helper()
	var clean strings.Builder
	for _, line := range strings.Split(string(readTestdata(t, rel)), "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		for _, r := range line {
			if !unicode.IsSpace(r) {
				clean.WriteRune(r)
			}
		}
	}
	data, err := hex.DecodeString(clean.String())
	if err != nil {
		t.Fatalf("decode %s: %v", rel, err)
	}
	return data
}

// LoadGolden returns an expected-output fixture verbatim.
func LoadGolden(t *testing.T, rel string) string {
	t.Helper()
	return string(readTestdata(t, rel))
}

func readTestdata(t *testing.T, rel string) []byte {
	t.Helper()
	candidates := []string{
		filepath.Join("testdata", rel),
		filepath.Join("..", "testdata", rel),
		filepath.Join("..", "..", "testdata", rel),
	}
	for _, path := range candidates {
		if data, err := os.ReadFile(path); err == nil {
			return data
		}
	}
	t.Fatalf("unable to locate testdata file %s", rel)
	return nil
}
