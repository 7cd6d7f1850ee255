package skills

import (
	"context"
	"strings"
	"sync"
)

const blockMarker = "--- retrieved skills ---"

// Injector retrieves relevant skill instructions and weaves them into a
// prompt, either appended to a system prompt or prepended to a user
// prompt.
type Injector struct {
	store *Store
	all   []Skill
	k     int

	mu            sync.Mutex
	lastUsedNames []string
}

// NewInjector wires a Store (vector retrieval, may have no embedder
// configured) against the full known skill list (trigger/tag fallback).
func NewInjector(store *Store, all []Skill, k int) *Injector {
	if k <= 0 {
		k = 3
	}
	return &Injector{store: store, all: all, k: k}
}

// Inject appends the retrieved skill block to systemPrompt.
func (in *Injector) Inject(ctx context.Context, query, systemPrompt string) string {
	block := in.retrieveBlock(ctx, query)
	if block == "" {
		return systemPrompt
	}
	if systemPrompt == "" {
		return block
	}
	return systemPrompt + "\n\n" + block
}

// InjectIntoPrompt prepends the retrieved skill block to userPrompt,
// separated by a delimiter.
func (in *Injector) InjectIntoPrompt(ctx context.Context, query, userPrompt string) string {
	block := in.retrieveBlock(ctx, query)
	if block == "" {
		return userPrompt
	}
	return block + "\n\n---\n\n" + userPrompt
}

// LastUsedSkills returns the names of skills used to build the most
// recently retrieved block.
func (in *Injector) LastUsedSkills() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]string, len(in.lastUsedNames))
	copy(out, in.lastUsedNames)
	return out
}

func (in *Injector) retrieveBlock(ctx context.Context, query string) string {
	names, texts := in.retrieve(ctx, query)

	in.mu.Lock()
	in.lastUsedNames = names
	in.mu.Unlock()

	var nonEmpty []string
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			nonEmpty = append(nonEmpty, t)
		}
	}
	if len(nonEmpty) == 0 {
		return ""
	}
	return blockMarker + "\n\n" + strings.Join(nonEmpty, "\n\n")
}

// retrieve implements the two-stage algorithm from the skill retrieval
// spec: vector search first (when a store is usable and the query is
// non-empty), falling back to trigger/tag matching otherwise.
func (in *Injector) retrieve(ctx context.Context, query string) (names []string, texts []string) {
	trimmed := strings.TrimSpace(query)

	if in.store != nil && trimmed != "" {
		if err := in.store.EnsureIndexed(ctx, in.all); err == nil {
			if rows, err := in.store.Search(ctx, trimmed, in.k); err == nil && len(rows) > 0 {
				seen := make(map[string]bool, len(rows))
				for _, r := range rows {
					if seen[r.Name] {
						continue
					}
					seen[r.Name] = true
					names = append(names, r.Name)
					texts = append(texts, r.Instructions)
				}
				return names, texts
			}
		}
	}

	return in.fallbackMatch(trimmed)
}

// fallbackMatch implements trigger-then-tag substring matching over the
// full known skill list, taking the first K skills when nothing matches.
func (in *Injector) fallbackMatch(query string) (names []string, texts []string) {
	lowerQuery := strings.ToLower(query)

	var triggerHits, tagHits []Skill
	for _, sk := range in.all {
		switch {
		case sk.matchesTrigger(lowerQuery):
			triggerHits = append(triggerHits, sk)
		case sk.matchesTag(lowerQuery):
			tagHits = append(tagHits, sk)
		}
	}

	matched := append(triggerHits, tagHits...)
	if len(matched) == 0 {
		matched = in.all
	}
	if len(matched) > in.k {
		matched = matched[:in.k]
	}

	for _, sk := range matched {
		names = append(names, sk.Name)
		texts = append(texts, sk.Instructions)
	}
	return names, texts
}
