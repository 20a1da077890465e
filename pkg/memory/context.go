package memory

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// Context renders what is known about a user for the system prompt.
// Unknown users yield "".
func (m *Memory) Context(ctx context.Context, userID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.People[userID]
	if !ok || (len(p.Facts) == 0 && len(p.Exchanges) == 0) {
		return "", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are talking with %s (session %s).\n", userID, SessionID(userID))
	if len(p.Facts) > 0 {
		b.WriteString("Known facts:\n")
		for _, f := range p.Facts {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	if len(p.Exchanges) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, e := range p.Exchanges {
			fmt.Fprintf(&b, "User: %s\nYou: %s\n", e.User, e.Robot)
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// Recall returns the facts and exchanges about userID that share a word with
// question. When nothing matches, every fact is returned so the model still
// sees what is known. Unknown users yield "".
func (m *Memory) Recall(ctx context.Context, userID, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.People[userID]
	if !ok {
		return "", nil
	}

	words := keywords(question)
	var lines []string
	for _, f := range p.Facts {
		if mentionsAny(f, words) {
			lines = append(lines, f)
		}
	}
	for _, e := range p.Exchanges {
		if mentionsAny(e.User, words) || mentionsAny(e.Robot, words) {
			lines = append(lines, fmt.Sprintf("They said %q and you replied %q", e.User, e.Robot))
		}
	}
	if len(lines) == 0 {
		lines = p.Facts
	}
	return strings.Join(lines, "\n"), nil
}

// keywords lowercases question and keeps words of three letters or more.
func keywords(question string) []string {
	var words []string
	for _, w := range strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(w) >= 3 {
			words = append(words, w)
		}
	}
	return words
}

func mentionsAny(text string, words []string) bool {
	text = strings.ToLower(text)
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
