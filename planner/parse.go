package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcore/agent/core"
)

// ExtractJSON pulls a JSON object out of a raw model reply using the
// three-step parse every domain planner shares: try the full reply, then a
// fenced code block, then the first balanced `{ ... }` substring. Step 2 is
// grounded on the teacher's extractJSON (orchestration/orchestrator.go);
// step 3 has no teacher equivalent and is hand-written here.
func ExtractJSON(reply string) (json.RawMessage, error) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return nil, fmt.Errorf("planner: empty model reply: %w", core.ErrNoJSONFound)
	}

	if raw, ok := tryUnmarshal(reply); ok {
		return raw, nil
	}

	if fenced, ok := stripCodeFence(reply); ok {
		if raw, ok := tryUnmarshal(fenced); ok {
			return raw, nil
		}
	}

	if block, ok := firstBalancedBraces(reply); ok {
		if raw, ok := tryUnmarshal(block); ok {
			return raw, nil
		}
	}

	return nil, fmt.Errorf("planner: no valid JSON object in reply %q: %w", truncate(reply, 200), core.ErrNoJSONFound)
}

func tryUnmarshal(s string) (json.RawMessage, bool) {
	s = strings.TrimSpace(s)
	if s == "" || !json.Valid([]byte(s)) {
		return nil, false
	}
	return json.RawMessage(s), true
}

// stripCodeFence removes a leading ```json or ``` fence and everything from
// the matching closing ``` onward, mirroring the teacher's extractJSON.
func stripCodeFence(text string) (string, bool) {
	switch {
	case strings.HasPrefix(text, "```json"):
		text = strings.TrimPrefix(text, "```json")
	case strings.HasPrefix(text, "```"):
		text = strings.TrimPrefix(text, "```")
	default:
		return "", false
	}
	if idx := strings.Index(text, "```"); idx != -1 {
		text = text[:idx]
	}
	return strings.TrimSpace(text), true
}

// firstBalancedBraces scans for the first top-level `{ ... }` span, tracking
// brace depth and skipping over braces inside string literals so an object
// containing `{` or `}` in a string value doesn't end the scan early.
func firstBalancedBraces(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// inside a string literal, braces don't affect depth
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
