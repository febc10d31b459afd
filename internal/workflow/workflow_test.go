package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func baseOptions() Options {
	return Options{
		GitUserName:  "github-actions[bot]",
		GitUserEmail: "github-actions[bot]@users.noreply.github.com",
	}
}

func stepNames(steps []Step) []string {
	names := make([]string, 0, len(steps))
	for _, s := range steps {
		names = append(names, s.Name)
	}
	return names
}

func TestRender(t *testing.T) {
	t.Run("Should render a dispatch trigger with the release type choice", func(t *testing.T) {
		data, err := Render(baseOptions())
		require.NoError(t, err)
		var def Definition
		require.NoError(t, yaml.Unmarshal(data, &def))
		input, ok := def.On.WorkflowDispatch.Inputs["release_type"]
		require.True(t, ok)
		assert.Equal(t, "choice", input.Type)
		assert.Equal(t, "auto", input.Default)
		assert.Equal(t, []string{"auto", "patch", "minor", "major"}, input.Options)
	})

	t.Run("Should check out full history and export the token", func(t *testing.T) {
		def, err := Build(baseOptions())
		require.NoError(t, err)
		job := def.Jobs["release"]
		assert.Equal(t, "${{ secrets.GH_TOKEN }}", job.Env["GH_TOKEN"])
		require.NotEmpty(t, job.Steps)
		assert.Equal(t, "actions/checkout@v4", job.Steps[0].Uses)
		assert.Equal(t, 0, job.Steps[0].With["fetch-depth"])
	})

	t.Run("Should order identity, version and publish after checkout", func(t *testing.T) {
		def, err := Build(baseOptions())
		require.NoError(t, err)
		steps := def.Jobs["release"].Steps
		assert.Equal(t, []string{
			"Checkout",
			"Configure git identity",
			"Version (auto)",
			"Version (forced)",
			"Publish",
		}, stepNames(steps))
		assert.Equal(t, "inputs.release_type == 'auto'", steps[2].If)
		assert.Equal(t, "semantic-release version", steps[2].Run)
		assert.Equal(t, "inputs.release_type != 'auto'", steps[3].If)
		assert.Equal(t, "semantic-release version --${{ inputs.release_type }}", steps[3].Run)
		assert.Equal(t, "semantic-release publish", steps[4].Run)
		assert.Empty(t, steps[4].If)
	})

	t.Run("Should render a single script when requested", func(t *testing.T) {
		opts := baseOptions()
		opts.SingleScript = true
		opts.InstallCommand = "pip install python-semantic-release"
		def, err := Build(opts)
		require.NoError(t, err)
		steps := def.Jobs["release"].Steps
		assert.Equal(t, []string{
			"Checkout",
			"Install release tool",
			"Configure git identity",
			"Version",
			"Publish",
		}, stepNames(steps))
		assert.Contains(t, steps[3].Run, `if [ "${{ inputs.release_type }}" = "auto" ]`)
		assert.Contains(t, steps[3].Run, "semantic-release version --${{ inputs.release_type }}")
	})

	t.Run("Should use a custom secret and command", func(t *testing.T) {
		opts := baseOptions()
		opts.TokenSecret = "RELEASE_TOKEN"
		opts.ReleaseCommand = "python -m semantic_release"
		data, err := Render(opts)
		require.NoError(t, err)
		assert.Contains(t, string(data), "${{ secrets.RELEASE_TOKEN }}")
		assert.Contains(t, string(data), "python -m semantic_release publish")
	})

	t.Run("Should reject invalid options", func(t *testing.T) {
		opts := baseOptions()
		opts.TokenSecret = "bad-name"
		_, err := Render(opts)
		assert.Error(t, err)

		opts = baseOptions()
		opts.GitUserEmail = ""
		_, err = Render(opts)
		assert.Error(t, err)

		opts = baseOptions()
		opts.GitUserName = `bot"; rm -rf /`
		_, err = Render(opts)
		assert.Error(t, err)
	})
}
