package ocr

import (
	"bufio"
	"errors"
	"fmt"
	"os"
)

// Charset maps CTC class indices to dictionary tokens. Index 0 is the CTC
// blank and is not part of the dictionary.
type Charset struct {
	tokens []string
}

// LoadCharset reads a character dictionary, one token per line.
func LoadCharset(path string) (*Charset, error) {
	if path == "" {
		return nil, errors.New("dictionary path cannot be empty")
	}
	f, err := os.Open(path) //nolint:gosec // G304: dictionary path comes from configuration
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var tokens []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		tokens = append(tokens, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dictionary: %w", err)
	}
	if len(tokens) == 0 {
		return nil, errors.New("dictionary is empty")
	}
	return &Charset{tokens: tokens}, nil
}

// Size returns the number of dictionary tokens, excluding the blank.
func (c *Charset) Size() int { return len(c.tokens) }

// Token returns the token for a dictionary index, or "" when out of range.
func (c *Charset) Token(idx int) string {
	if idx < 0 || idx >= len(c.tokens) {
		return ""
	}
	return c.tokens[idx]
}
