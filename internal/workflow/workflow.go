// Package workflow renders the GitHub Actions definition of the manual release trigger.
package workflow

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/compozy/release-dispatch/internal/domain"
	"gopkg.in/yaml.v3"
)

// Defaults for Options fields left empty.
const (
	DefaultName           = "Release"
	DefaultRunsOn         = "ubuntu-latest"
	DefaultCheckoutAction = "actions/checkout@v4"
	DefaultTokenSecret    = "GH_TOKEN"
	DefaultReleaseCommand = "semantic-release"
)

const inputReleaseType = "release_type"

var secretNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Options controls the rendered workflow.
type Options struct {
	Name           string
	RunsOn         string
	CheckoutAction string
	// TokenSecret names the repository secret exported as GH_TOKEN.
	TokenSecret    string
	ReleaseCommand string
	// InstallCommand, when set, runs after checkout (e.g. "pip install python-semantic-release").
	InstallCommand string
	GitUserName    string
	GitUserEmail   string
	// SingleScript renders the version step as one shell conditional instead of two guarded steps.
	SingleScript bool
}

// Definition is the subset of the GitHub Actions schema the release workflow uses.
type Definition struct {
	Name        string            `yaml:"name"`
	On          Triggers          `yaml:"on"`
	Permissions map[string]string `yaml:"permissions,omitempty"`
	Jobs        map[string]Job    `yaml:"jobs"`
}

type Triggers struct {
	WorkflowDispatch Dispatch `yaml:"workflow_dispatch"`
}

type Dispatch struct {
	Inputs map[string]Input `yaml:"inputs"`
}

type Input struct {
	Description string   `yaml:"description"`
	Required    bool     `yaml:"required"`
	Default     string   `yaml:"default"`
	Type        string   `yaml:"type"`
	Options     []string `yaml:"options,omitempty"`
}

type Job struct {
	RunsOn string            `yaml:"runs-on"`
	Env    map[string]string `yaml:"env,omitempty"`
	Steps  []Step            `yaml:"steps"`
}

type Step struct {
	Name string         `yaml:"name"`
	If   string         `yaml:"if,omitempty"`
	Uses string         `yaml:"uses,omitempty"`
	With map[string]any `yaml:"with,omitempty"`
	Run  string         `yaml:"run,omitempty"`
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = DefaultName
	}
	if o.RunsOn == "" {
		o.RunsOn = DefaultRunsOn
	}
	if o.CheckoutAction == "" {
		o.CheckoutAction = DefaultCheckoutAction
	}
	if o.TokenSecret == "" {
		o.TokenSecret = DefaultTokenSecret
	}
	if o.ReleaseCommand == "" {
		o.ReleaseCommand = DefaultReleaseCommand
	}
	return o
}

func (o Options) validate() error {
	if !secretNameRegex.MatchString(o.TokenSecret) {
		return fmt.Errorf("invalid secret name: %q", o.TokenSecret)
	}
	if strings.TrimSpace(o.GitUserName) == "" || strings.TrimSpace(o.GitUserEmail) == "" {
		return fmt.Errorf("git identity requires both name and email")
	}
	if strings.ContainsAny(o.GitUserName+o.GitUserEmail, "\"\n`$") {
		return fmt.Errorf("git identity contains shell metacharacters")
	}
	return nil
}

// Build assembles the workflow definition.
func Build(opts Options) (*Definition, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	choices := make([]string, 0, len(domain.AllReleaseTypes()))
	for _, rt := range domain.AllReleaseTypes() {
		choices = append(choices, rt.String())
	}
	steps := []Step{{
		Name: "Checkout",
		Uses: opts.CheckoutAction,
		With: map[string]any{"fetch-depth": 0},
	}}
	if opts.InstallCommand != "" {
		steps = append(steps, Step{Name: "Install release tool", Run: opts.InstallCommand})
	}
	steps = append(steps, Step{
		Name: "Configure git identity",
		Run: fmt.Sprintf("git config user.name \"%s\"\ngit config user.email \"%s\"\n",
			opts.GitUserName, opts.GitUserEmail),
	})
	steps = append(steps, versionSteps(opts)...)
	steps = append(steps, Step{Name: "Publish", Run: opts.ReleaseCommand + " publish"})
	return &Definition{
		Name: opts.Name,
		On: Triggers{WorkflowDispatch: Dispatch{Inputs: map[string]Input{
			inputReleaseType: {
				Description: "Release type (auto derives it from commits)",
				Required:    true,
				Default:     domain.DefaultReleaseType.String(),
				Type:        "choice",
				Options:     choices,
			},
		}}},
		Permissions: map[string]string{"contents": "write"},
		Jobs: map[string]Job{
			"release": {
				RunsOn: opts.RunsOn,
				Env:    map[string]string{"GH_TOKEN": fmt.Sprintf("${{ secrets.%s }}", opts.TokenSecret)},
				Steps:  steps,
			},
		},
	}, nil
}

// versionSteps passes no flag for auto and --<type> otherwise.
func versionSteps(opts Options) []Step {
	input := fmt.Sprintf("${{ inputs.%s }}", inputReleaseType)
	auto := domain.ReleaseTypeAuto.String()
	if opts.SingleScript {
		script := fmt.Sprintf("if [ \"%s\" = \"%s\" ]; then\n  %s version\nelse\n  %s version --%s\nfi\n",
			input, auto, opts.ReleaseCommand, opts.ReleaseCommand, input)
		return []Step{{Name: "Version", Run: script}}
	}
	return []Step{
		{
			Name: "Version (auto)",
			If:   fmt.Sprintf("inputs.%s == '%s'", inputReleaseType, auto),
			Run:  opts.ReleaseCommand + " version",
		},
		{
			Name: "Version (forced)",
			If:   fmt.Sprintf("inputs.%s != '%s'", inputReleaseType, auto),
			Run:  fmt.Sprintf("%s version --%s", opts.ReleaseCommand, input),
		},
	}
}

// Render returns the workflow as YAML.
func Render(opts Options) ([]byte, error) {
	def, err := Build(opts)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(def); err != nil {
		return nil, fmt.Errorf("workflow: encode definition: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("workflow: encode definition: %w", err)
	}
	return buf.Bytes(), nil
}
