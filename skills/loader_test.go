package skills

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSkill(t *testing.T, root, name, content string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(content), 0o644))
}

func TestLoadDir_ParsesFrontmatter(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "steel-beams", `---
name: steel-beams
description: Steel beam sizing heuristics
version: "1.0"
tags: [structural, steel]
triggers: [beam, i-beam]
---

Use AISC tables for standard sections.
`)

	list, err := LoadDir(root)
	require.NoError(t, err)
	require.Len(t, list, 1)

	sk := list[0]
	assert.Equal(t, "steel-beams", sk.Name)
	assert.Equal(t, "Steel beam sizing heuristics", sk.Description)
	assert.Equal(t, []string{"structural", "steel"}, sk.Tags)
	assert.Equal(t, []string{"beam", "i-beam"}, sk.Triggers)
	assert.Contains(t, sk.Instructions, "AISC")
}

func TestLoadDir_NoFrontmatterUsesDirName(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "plain-notes", "Just some free text, no frontmatter.\n")

	list, err := LoadDir(root)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "plain-notes", list[0].Name)
	assert.Empty(t, list[0].Description)
	assert.Contains(t, list[0].Instructions, "free text")
}

func TestLoadDir_SkipsDirsWithoutSkillFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty-dir"), 0o755))
	writeSkill(t, root, "has-skill", "---\nname: has-skill\n---\nbody\n")

	list, err := LoadDir(root)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "has-skill", list[0].Name)
}
