// Package sqltable names the destination table of an upsert and builds the
// statement shared by the table writers.
package sqltable

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// DefaultTable is the destination used when none is configured.
const DefaultTable = "[dbo].[Products]"

// ErrInvalidName is returned for table names that cannot be parsed.
var ErrInvalidName = errors.New("sqltable: invalid table name")

// Name is a schema-qualified table name. Schema may be empty.
type Name struct {
	Schema string
	Table  string
}

// ParseName accepts bracketed ("[dbo].[Products]"), double-quoted
// ("\"dbo\".\"Products\"") and bare ("dbo.Products", "Products") names.
// "]]" inside brackets and "\"\"" inside quotes escape the closing rune.
func ParseName(s string) (Name, error) {
	parts, err := splitParts(strings.TrimSpace(s))
	if err != nil {
		return Name{}, fmt.Errorf("%w: %q: %v", ErrInvalidName, s, err)
	}

	switch len(parts) {
	case 1:
		return Name{Table: parts[0]}, nil
	case 2:
		return Name{Schema: parts[0], Table: parts[1]}, nil
	default:
		return Name{}, fmt.Errorf("%w: %q: expected [schema.]table", ErrInvalidName, s)
	}
}

// MustParseName is ParseName for constants; it panics on error.
func MustParseName(s string) Name {
	n, err := ParseName(s)
	if err != nil {
		panic(err)
	}
	return n
}

// Identifier returns the name as a pgx identifier.
func (n Name) Identifier() pgx.Identifier {
	if n.Schema == "" {
		return pgx.Identifier{n.Table}
	}
	return pgx.Identifier{n.Schema, n.Table}
}

// Quoted returns the name quoted for use in SQL text.
func (n Name) Quoted() string {
	return n.Identifier().Sanitize()
}

// String renders the name in bracket form.
func (n Name) String() string {
	table := "[" + strings.ReplaceAll(n.Table, "]", "]]") + "]"
	if n.Schema == "" {
		return table
	}
	return "[" + strings.ReplaceAll(n.Schema, "]", "]]") + "]." + table
}

func splitParts(s string) ([]string, error) {
	if s == "" {
		return nil, errors.New("empty")
	}

	var parts []string
	for i := 0; i < len(s); {
		var part string
		var err error
		switch s[i] {
		case '[':
			part, i, err = readDelimited(s, i, ']')
		case '"':
			part, i, err = readDelimited(s, i, '"')
		default:
			j := strings.IndexByte(s[i:], '.')
			if j < 0 {
				j = len(s) - i
			}
			part = strings.TrimSpace(s[i : i+j])
			i += j
		}
		if err != nil {
			return nil, err
		}
		if part == "" {
			return nil, errors.New("empty part")
		}
		parts = append(parts, part)

		if i == len(s) {
			break
		}
		if s[i] != '.' {
			return nil, fmt.Errorf("unexpected %q at %d", s[i], i)
		}
		i++
		if i == len(s) {
			return nil, errors.New("trailing dot")
		}
	}
	return parts, nil
}

// readDelimited reads an identifier opened at s[start] and closed by end,
// returning the unescaped identifier and the index after the closing rune.
func readDelimited(s string, start int, end byte) (string, int, error) {
	var b strings.Builder
	for i := start + 1; i < len(s); i++ {
		if s[i] != end {
			b.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) && s[i+1] == end {
			b.WriteByte(end)
			i++
			continue
		}
		return b.String(), i + 1, nil
	}
	return "", 0, fmt.Errorf("unterminated identifier at %d", start)
}
