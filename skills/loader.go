package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// frontmatter mirrors the recognised SKILL.md YAML keys.
type frontmatter struct {
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description"`
	Version       string   `yaml:"version"`
	Author        string   `yaml:"author"`
	Tags          []string `yaml:"tags"`
	Triggers      []string `yaml:"triggers"`
	Prerequisites []string `yaml:"prerequisites"`
}

// LoadDir walks root for <root>/<skill-name>/SKILL.md files and parses
// each into a Skill. A directory without a SKILL.md is skipped silently;
// a SKILL.md without frontmatter yields a skill named after its directory
// with an empty description.
func LoadDir(root string) ([]Skill, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("skills: reading %s: %w", root, err)
	}

	var out []Skill
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(root, entry.Name(), "SKILL.md")
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("skills: reading %s: %w", path, err)
		}

		skill, err := parseSkillFile(entry.Name(), path, data)
		if err != nil {
			return nil, err
		}
		out = append(out, skill)
	}
	return out, nil
}

func parseSkillFile(dirName, path string, data []byte) (Skill, error) {
	fm, body := splitFrontmatter(data)

	skill := Skill{
		Name:         dirName,
		Instructions: strings.TrimSpace(body),
		Source:       path,
	}

	if fm != "" {
		var parsed frontmatter
		if err := yaml.Unmarshal([]byte(fm), &parsed); err != nil {
			return Skill{}, fmt.Errorf("skills: parsing frontmatter in %s: %w", path, err)
		}
		if parsed.Name != "" {
			skill.Name = parsed.Name
		}
		skill.Description = parsed.Description
		skill.Version = parsed.Version
		skill.Author = parsed.Author
		skill.Tags = parsed.Tags
		skill.Triggers = parsed.Triggers
		skill.Prerequisites = parsed.Prerequisites
	}

	return skill, nil
}

// splitFrontmatter separates a leading "---\n...\n---\n" YAML block from
// the rest of the file. Returns an empty frontmatter string if the file
// doesn't open with a delimiter line.
func splitFrontmatter(data []byte) (fm string, body string) {
	text := string(data)
	const delim = "---"

	trimmed := strings.TrimLeft(text, "\n")
	if !strings.HasPrefix(trimmed, delim) {
		return "", text
	}

	rest := strings.TrimPrefix(trimmed, delim)
	rest = strings.TrimPrefix(rest, "\n")

	idx := strings.Index(rest, "\n"+delim)
	if idx == -1 {
		return "", text
	}

	fm = rest[:idx]
	body = rest[idx+len("\n"+delim):]
	body = strings.TrimPrefix(body, "\n")
	return fm, body
}
