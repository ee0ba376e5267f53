// Package llmjson extracts a JSON value from free-form model output.
//
// Models asked for JSON often wrap it in a markdown code fence or surround it
// with prose. Decode strips the fence, isolates the first balanced object
// or array that is valid JSON and unmarshals it.
package llmjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ErrNoJSON is returned when the text holds no balanced JSON object or array.
var ErrNoJSON = errors.New("no JSON value found")

var md = goldmark.New()

// StripFences returns the body of the first fenced code block in s, or s
// unchanged when it has none. A block tagged json wins over untagged ones.
func StripFences(s string) string {
	source := []byte(s)
	doc := md.Parser().Parse(text.NewReader(source))

	var first, tagged *ast.FencedCodeBlock
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		block, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		if first == nil {
			first = block
		}
		if strings.EqualFold(string(block.Language(source)), "json") {
			tagged = block
			return ast.WalkStop, nil
		}
		return ast.WalkSkipChildren, nil
	})

	block := tagged
	if block == nil {
		block = first
	}
	if block == nil {
		return s
	}

	var buf bytes.Buffer
	lines := block.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	return buf.String()
}

// Extract returns the first balanced, valid JSON object or array in s. Braces
// inside JSON strings are ignored. A bracketed aside that is not JSON, such as
// "[see below]", is skipped and the scan resumes after its opening bracket.
func Extract(s string) (string, error) {
	return extract(s, "{[")
}

// Decode strips fences, extracts the JSON value and unmarshals it into v.
// When v points to a struct or map only objects are considered, and when it
// points to a slice or array only arrays are.
func Decode(s string, v any) error {
	raw, err := extract(StripFences(s), openersFor(v))
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	return nil
}

func openersFor(v any) string {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "{["
	}
	switch t.Kind() {
	case reflect.Struct, reflect.Map:
		return "{"
	case reflect.Slice, reflect.Array:
		return "["
	}
	return "{["
}

func extract(s, openers string) (string, error) {
	err := ErrNoJSON
	for off := 0; off < len(s); {
		i := strings.IndexAny(s[off:], openers)
		if i < 0 {
			break
		}
		start := off + i

		end, scanErr := balancedEnd(s, start)
		switch {
		case scanErr != nil:
			err = scanErr
		case json.Valid([]byte(s[start:end])):
			return s[start:end], nil
		default:
			err = fmt.Errorf("%w: invalid value at offset %d", ErrNoJSON, start)
		}
		off = start + 1
	}
	return "", err
}

// balancedEnd returns the offset just past the value opened at s[start].
func balancedEnd(s string, start int) (int, error) {
	var stack []byte
	inString, escaped := false, false

	for i := start; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return 0, fmt.Errorf("%w: unbalanced %q at offset %d", ErrNoJSON, c, i)
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i + 1, nil
			}
		}
	}

	return 0, fmt.Errorf("%w: unterminated value starting at offset %d", ErrNoJSON, start)
}
