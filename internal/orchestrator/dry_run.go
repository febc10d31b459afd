package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/compozy/release-dispatch/internal/domain"
	"github.com/compozy/release-dispatch/internal/logger"
	"github.com/compozy/release-dispatch/internal/repository"
	"github.com/compozy/release-dispatch/internal/service"
)

// DryRunConfig holds configuration for the dry-run orchestrator
type DryRunConfig struct {
	ReleaseType  domain.ReleaseType
	CIOutput     bool
	SkipCheckout bool
	RemoteURL    string
}

// DryRunOrchestrator prints what a dispatch would run without changing anything
type DryRunOrchestrator struct {
	gitRepo    repository.GitRepository
	releaseSvc service.SemanticReleaseService
	out        io.Writer
}

// NewDryRunOrchestrator creates a new DryRunOrchestrator
func NewDryRunOrchestrator(
	gitRepo repository.GitRepository,
	releaseSvc service.SemanticReleaseService,
) *DryRunOrchestrator {
	return &DryRunOrchestrator{
		gitRepo:    gitRepo,
		releaseSvc: releaseSvc,
		out:        os.Stdout,
	}
}

// Execute prints the release plan
func (o *DryRunOrchestrator) Execute(ctx context.Context, cfg DryRunConfig) error {
	rt, err := ValidateReleaseType(string(cfg.ReleaseType))
	if err != nil {
		return err
	}
	latestTag, checkedOut, err := o.inspectRepository(ctx)
	if err != nil {
		return err
	}
	versionCmd := o.releaseSvc.VersionCommand(rt)
	publishCmd := o.releaseSvc.PublishCommand()
	nextVersion := expectedVersion(rt, latestTag)

	o.printCIOutput(cfg.CIOutput, "dry_run=true\n")
	o.printCIOutput(cfg.CIOutput, "release_type=%s\n", rt)
	o.printCIOutput(cfg.CIOutput, "latest_tag=%s\n", latestTag)
	o.printCIOutput(cfg.CIOutput, "next_version=%s\n", nextVersion)
	o.printCIOutput(cfg.CIOutput, "version_command=%s\n", versionCmd)
	o.printCIOutput(cfg.CIOutput, "publish_command=%s\n", publishCmd)

	o.printStatus(cfg.CIOutput, "### 🧪 Release plan (dry run)")
	o.printStatus(cfg.CIOutput, "1. Checkout: "+checkoutPlan(cfg, checkedOut))
	o.printStatus(cfg.CIOutput, "2. Configure git identity")
	o.printStatus(cfg.CIOutput, "3. Version: "+versionCmd.String())
	o.printStatus(cfg.CIOutput, "4. Publish: "+publishCmd.String())
	if latestTag != "" {
		o.printStatus(cfg.CIOutput, "ℹ️ Latest tag: "+latestTag)
	}
	if nextVersion != "" {
		o.printStatus(cfg.CIOutput, "ℹ️ Expected next version: "+nextVersion)
	} else if rt.IsAuto() {
		o.printStatus(cfg.CIOutput, "ℹ️ The next version will be derived from commit history")
	}
	o.printStatus(cfg.CIOutput, "## ✅ Dry-run completed, nothing was executed")
	return nil
}

// inspectRepository reads the latest tag. A missing checkout is not an error in a dry run.
func (o *DryRunOrchestrator) inspectRepository(ctx context.Context) (string, bool, error) {
	log := logger.FromContext(ctx)
	latestTag, err := o.gitRepo.LatestTag(ctx)
	if errors.Is(err, repository.ErrRepositoryNotOpen) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get latest tag: %w", err)
	}
	if shallow, err := o.gitRepo.IsShallow(ctx); err == nil && shallow {
		log.Warn("working copy is shallow, checkout will fetch full history")
	}
	return latestTag, true, nil
}

func checkoutPlan(cfg DryRunConfig, checkedOut bool) string {
	switch {
	case cfg.SkipCheckout:
		return "skipped"
	case !checkedOut && cfg.RemoteURL != "":
		return "clone " + cfg.RemoteURL + " with full history"
	case !checkedOut:
		return "no repository found and no remote URL configured"
	default:
		return "fetch all branches and tags"
	}
}

// expectedVersion is informational. The release tool makes the real decision.
func expectedVersion(rt domain.ReleaseType, latestTag string) string {
	if rt.IsAuto() || latestTag == "" {
		return ""
	}
	prev, err := domain.NewVersion(latestTag)
	if err != nil {
		return ""
	}
	return prev.Bump(rt).String()
}

// printCIOutput prints output in CI format if enabled
func (o *DryRunOrchestrator) printCIOutput(ciOutput bool, format string, args ...any) {
	if ciOutput {
		fmt.Fprintf(o.out, format, args...)
	}
}

// printStatus prints status if not CI
func (o *DryRunOrchestrator) printStatus(ciOutput bool, message string) {
	if !ciOutput {
		fmt.Fprintln(o.out, message)
	}
}
