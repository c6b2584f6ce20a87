package ansible

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriver_PlaybookArgs(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "ansible-stub")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\necho \"$@\"\n"), 0o755))

	d := New(dir)
	d.Bin = bin

	var lines []string
	result, err := d.Playbook(context.Background(), "site.yml",
		map[string]string{"db_version": "8.32.0"},
		func(l string) { lines = append(lines, l) })
	require.NoError(t, err)
	assert.Equal(t, 1, result.Lines)

	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "-i "+filepath.Join(dir, InventoryFile))
	assert.Contains(t, lines[0], filepath.Join(dir, PlaybookDir, "site.yml"))
	assert.Contains(t, lines[0], "-e db_version=8.32.0")
}

func TestDriver_PlaybookFailure(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "ansible-stub")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\necho 'TASK [Install packages]'\nexit 2\n"), 0o755))

	d := New(dir)
	d.Bin = bin

	var lines []string
	_, err := d.Playbook(context.Background(), "site.yml", nil, func(l string) { lines = append(lines, l) })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited with code 2")
	assert.Equal(t, []string{"TASK [Install packages]"}, lines)
}
