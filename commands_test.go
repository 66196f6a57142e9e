package main

import (
	"testing"

	"github.com/mitchellh/cli"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftl/mfp/core"
)

const validPatch = `{
  "format_version": "1.0",
  "name": "main",
  "objects": {
    "1": {"type": "var", "initargs": "3", "name": "v", "connections": [[[2, 0]]]},
    "2": {"type": "print", "initargs": "", "connections": []}
  }
}`

const brokenPatch = `{
  "name": "broken",
  "objects": {
    "1": {"type": "var", "initargs": "", "connections": [[[5, 0]]]},
    "2": {"type": "nonexistent", "initargs": "", "connections": []}
  }
}`

func TestCheckCommand(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/patches/main.mfp", []byte(validPatch), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/patches/broken.mfp", []byte(brokenPatch), 0o644))

	testCases := []struct {
		desc     string
		args     []string
		exitCode int
		output   []string
		errors   []string
	}{
		{"valid", []string{"main"}, 0, []string{"var 3 (v)", "print"}, nil},
		{"broken", []string{"broken"}, 1, []string{"patch (broken)"}, []string{"nonexistent", "unknown connection target 5"}},
		{"missing", []string{"missing"}, 1, nil, []string{"missing"}},
		{"no args", nil, 1, nil, []string{"Usage"}},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			ui := cli.NewMockUi()
			c := &checkCommand{ui: ui, configuration: core.Configuration{PatchDir: "/patches"}, fs: fs}

			exitCode := c.Run(tC.args)

			assert.Equal(t, tC.exitCode, exitCode)
			for _, s := range tC.output {
				assert.Contains(t, ui.OutputWriter.String(), s)
			}
			for _, s := range tC.errors {
				assert.Contains(t, ui.ErrorWriter.String(), s)
			}
		})
	}
}
