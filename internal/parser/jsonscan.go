package parser

import (
	"strings"
)

// scanner walks JSON-ish text tracking bracket depth while skipping string
// literals, so brackets inside quoted text never affect nesting.
type scanner struct {
	inString bool
	escaped  bool
	depth    int
}

// step consumes one byte and reports whether it is a structural character
// (outside any string literal).
func (s *scanner) step(c byte) bool {
	if s.inString {
		switch {
		case s.escaped:
			s.escaped = false
		case c == '\\':
			s.escaped = true
		case c == '"':
			s.inString = false
		}
		return false
	}

	switch c {
	case '"':
		s.inString = true
		return false
	case '[', '{':
		s.depth++
	case ']', '}':
		s.depth--
	}
	return true
}

// BalancedEnd returns the index of the bracket closing the one at open.
func BalancedEnd(text string, open int) (int, bool) {
	if open < 0 || open >= len(text) || (text[open] != '[' && text[open] != '{') {
		return -1, false
	}

	var sc scanner
	for i := open; i < len(text); i++ {
		c := text[i]
		if !sc.step(c) {
			continue
		}
		if (c == ']' || c == '}') && sc.depth == 0 {
			return i, true
		}
	}
	return -1, false
}

// BalancedSpan returns the text of the balanced value starting at open.
func BalancedSpan(text string, open int) (string, bool) {
	end, ok := BalancedEnd(text, open)
	if !ok {
		return "", false
	}
	return text[open : end+1], true
}

// ArrayElements splits the array opening at open into its top-level element
// texts. A truncated array yields every element completed before the cut;
// complete reports whether the closing bracket was reached.
func ArrayElements(text string, open int) (elems []string, complete bool) {
	if open < 0 || open >= len(text) || text[open] != '[' {
		return nil, false
	}

	var sc scanner
	start := open + 1
	for i := open; i < len(text); i++ {
		c := text[i]
		if !sc.step(c) {
			continue
		}

		switch {
		case c == ',' && sc.depth == 1:
			if el := strings.TrimSpace(text[start:i]); el != "" {
				elems = append(elems, el)
			}
			start = i + 1
		case (c == ']' || c == '}') && sc.depth == 0:
			if el := strings.TrimSpace(text[start:i]); el != "" {
				elems = append(elems, el)
			}
			return elems, true
		}
	}

	// Cut right after a complete element: keep it, the decoder decides.
	if sc.depth == 1 && !sc.inString {
		if el := strings.TrimSpace(text[start:]); el != "" {
			elems = append(elems, el)
		}
	}
	return elems, false
}
