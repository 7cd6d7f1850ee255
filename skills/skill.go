// Package skills implements the Skill Store and Skill Injector: domain
// heuristics loaded from markdown files, indexed for vector similarity
// search, and retrieved into prompts at planning time.
package skills

import "strings"

// Skill is a named, tagged unit of domain heuristics loaded from a
// SKILL.md file. Skills are immutable once loaded.
type Skill struct {
	Name          string
	Description   string
	Instructions  string
	Tags          []string
	Triggers      []string
	Version       string
	Author        string
	Prerequisites []string
	Source        string
}

// matchesTrigger reports whether any of the skill's triggers appears as a
// substring of the lowercased query.
func (s Skill) matchesTrigger(lowerQuery string) bool {
	for _, trig := range s.Triggers {
		if trig != "" && strings.Contains(lowerQuery, strings.ToLower(trig)) {
			return true
		}
	}
	return false
}

// matchesTag reports whether any of the skill's tags appears as a
// substring of the lowercased query.
func (s Skill) matchesTag(lowerQuery string) bool {
	for _, tag := range s.Tags {
		if tag != "" && strings.Contains(lowerQuery, strings.ToLower(tag)) {
			return true
		}
	}
	return false
}
