package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/compozy/release-dispatch/internal/domain"
	"github.com/compozy/release-dispatch/internal/logger"
	"github.com/compozy/release-dispatch/internal/repository"
	"github.com/compozy/release-dispatch/internal/service"
	"github.com/compozy/release-dispatch/internal/usecase"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// ReleaseConfig contains the per-dispatch inputs.
type ReleaseConfig struct {
	ReleaseType    domain.ReleaseType
	DryRun         bool
	CIOutput       bool
	SkipCheckout   bool   // Use the working copy as is
	EnableRollback bool   // Enable saga-based rollback support
	Rollback       bool   // Perform rollback of failed session
	SessionID      string // Session ID for rollback operations
}

// ReleaseSettings are the repository-level settings that do not change between dispatches.
type ReleaseSettings struct {
	RemoteURL    string
	RemoteName   string
	WorkDir      string
	GitUserName  string
	GitUserEmail string
	Token        string
	StateDir     string
}

// ReleaseOrchestrator runs the dispatch: checkout, identity, version, publish.
type ReleaseOrchestrator struct {
	gitRepo    repository.GitRepository
	githubRepo repository.GithubRepository
	fsRepo     repository.FileSystemRepository
	releaseSvc service.SemanticReleaseService
	gitRunner  service.CommandRunner
	stateRepo  repository.StateRepository
	settings   ReleaseSettings
	timeouts   Timeouts
	out        io.Writer
}

// NewReleaseOrchestrator creates a new release orchestrator.
func NewReleaseOrchestrator(
	gitRepo repository.GitRepository,
	githubRepo repository.GithubRepository,
	fsRepo repository.FileSystemRepository,
	releaseSvc service.SemanticReleaseService,
	gitRunner service.CommandRunner,
	settings ReleaseSettings,
) *ReleaseOrchestrator {
	return &ReleaseOrchestrator{
		gitRepo:    gitRepo,
		githubRepo: githubRepo,
		fsRepo:     fsRepo,
		releaseSvc: releaseSvc,
		gitRunner:  gitRunner,
		stateRepo:  repository.NewJSONStateRepository(fsRepo, settings.StateDir),
		settings:   settings,
		timeouts:   DefaultTimeouts(),
		out:        os.Stdout,
	}
}

// Execute runs the release workflow.
func (o *ReleaseOrchestrator) Execute(ctx context.Context, cfg ReleaseConfig) error {
	if cfg.Rollback {
		return o.performRollback(ctx, cfg.SessionID)
	}
	rt, err := ValidateReleaseType(string(cfg.ReleaseType))
	if err != nil {
		return err
	}
	if cfg.DryRun {
		dry := NewDryRunOrchestrator(o.gitRepo, o.releaseSvc)
		dry.out = o.out
		return dry.Execute(ctx, DryRunConfig{
			ReleaseType:  rt,
			CIOutput:     cfg.CIOutput,
			SkipCheckout: cfg.SkipCheckout,
			RemoteURL:    o.settings.RemoteURL,
		})
	}
	ctx, cancel := context.WithTimeout(ctx, o.timeouts.Workflow)
	defer cancel()
	if o.settings.Token == "" {
		if err := ValidateEnvironmentVariables([]string{envGHToken}); err != nil {
			return fmt.Errorf("environment validation failed: %w", err)
		}
	}
	saga := NewSagaExecutor(o.stateRepo, cfg.EnableRollback)
	saga.rollbackTimeout = o.timeouts.Rollback
	saga.SetReleaseType(rt)
	if cfg.EnableRollback {
		logger.FromContext(ctx).Info("rollback enabled", zap.String("session_id", saga.SessionID()))
	}
	wctx := &workflowContext{releaseType: rt}
	return o.buildAndExecuteWorkflow(ctx, saga, cfg, wctx)
}

// workflowContext holds shared state for workflow execution
type workflowContext struct {
	releaseType domain.ReleaseType
	release     *domain.Release
	releaseURL  string
}

// buildAndExecuteWorkflow builds all workflow steps and executes the saga
func (o *ReleaseOrchestrator) buildAndExecuteWorkflow(
	ctx context.Context,
	saga *SagaExecutor,
	cfg ReleaseConfig,
	wctx *workflowContext,
) error {
	compensator := NewCompensatingActions(o.gitRepo, o.githubRepo, o.timeouts)
	if !cfg.SkipCheckout {
		o.addCheckoutStep(saga, compensator)
	}
	o.addConfigureIdentityStep(saga, compensator)
	o.addVersionStep(saga, cfg, compensator, wctx)
	o.addPublishStep(saga, cfg, compensator, wctx)
	if err := saga.Execute(ctx); err != nil {
		return fmt.Errorf("release workflow failed: %w", err)
	}
	switch {
	case wctx.release.Bumped() && wctx.releaseURL != "":
		o.printStatus(cfg.CIOutput, fmt.Sprintf("✅ Released %s: %s", wctx.release.TagName, wctx.releaseURL))
	case wctx.release.Bumped():
		o.printStatus(cfg.CIOutput, fmt.Sprintf("✅ Released %s", wctx.release.TagName))
	default:
		o.printStatus(cfg.CIOutput, "ℹ️ No new release was produced")
	}
	return nil
}

func (o *ReleaseOrchestrator) addCheckoutStep(saga *SagaExecutor, compensator *CompensatingActions) {
	saga.AddStep(SagaStep{
		Name: "Checkout",
		Type: domain.OperationTypeCheckout,
		Execute: func(ctx context.Context) (map[string]any, error) {
			uc := &usecase.CheckoutUseCase{
				GitRepo:    o.gitRepo,
				Runner:     o.gitRunner,
				RemoteName: o.settings.RemoteName,
				Dir:        o.settings.WorkDir,
			}
			if err := uc.Execute(ctx, o.settings.RemoteURL); err != nil {
				return nil, err
			}
			return map[string]any{}, nil
		},
		Compensate: compensator.NoOp,
	})
}

func (o *ReleaseOrchestrator) addConfigureIdentityStep(saga *SagaExecutor, compensator *CompensatingActions) {
	saga.AddStep(SagaStep{
		Name: "Configure Identity",
		Type: domain.OperationTypeConfigureIdentity,
		Execute: func(ctx context.Context) (map[string]any, error) {
			uc := &usecase.ConfigureIdentityUseCase{GitRepo: o.gitRepo}
			if err := uc.Execute(ctx, o.settings.GitUserName, o.settings.GitUserEmail); err != nil {
				return nil, err
			}
			return map[string]any{"name": o.settings.GitUserName, "email": o.settings.GitUserEmail}, nil
		},
		Compensate: compensator.NoOp,
	})
}

func (o *ReleaseOrchestrator) addVersionStep(
	saga *SagaExecutor,
	cfg ReleaseConfig,
	compensator *CompensatingActions,
	wctx *workflowContext,
) {
	saga.AddStep(SagaStep{
		Name: "Version",
		Type: domain.OperationTypeVersion,
		Execute: func(ctx context.Context) (map[string]any, error) {
			if branch, err := o.gitRepo.GetCurrentBranch(ctx); err == nil {
				saga.SetBranch(branch)
			}
			uc := &usecase.BumpVersionUseCase{GitRepo: o.gitRepo, ReleaseSvc: o.releaseSvc}
			release, err := uc.Execute(ctx, wctx.releaseType)
			if err != nil {
				return nil, err
			}
			wctx.release = release
			saga.SetHeadBefore(release.HeadBefore)
			version := ""
			if release.Version != nil {
				version = release.Version.String()
				if err := ValidateVersion(version); err != nil {
					return nil, fmt.Errorf("invalid version: %w", err)
				}
				saga.SetVersion(version)
			}
			o.writeOutputs(ctx, cfg.CIOutput, []output{
				{"release_type", wctx.releaseType.String()},
				{"previous_tag", release.PreviousTag},
				{"tag", release.TagName},
				{"version", strings.TrimPrefix(version, "v")},
				{"released", fmt.Sprintf("%t", release.Bumped())},
			})
			return map[string]any{
				rollbackKeyHeadBefore:  release.HeadBefore,
				rollbackKeyHeadAfter:   release.HeadAfter,
				rollbackKeyPreviousTag: release.PreviousTag,
				rollbackKeyTag:         release.TagName,
				rollbackKeyBumped:      release.Bumped(),
			}, nil
		},
		Compensate: compensator.UndoVersion,
	})
}

func (o *ReleaseOrchestrator) addPublishStep(
	saga *SagaExecutor,
	cfg ReleaseConfig,
	compensator *CompensatingActions,
	wctx *workflowContext,
) {
	saga.AddStep(SagaStep{
		Name: "Publish",
		Type: domain.OperationTypePublish,
		Execute: func(ctx context.Context) (map[string]any, error) {
			uc := &usecase.PublishUseCase{ReleaseSvc: o.releaseSvc}
			if err := uc.Execute(ctx); err != nil {
				return nil, err
			}
			wctx.release.Published = true
			data := map[string]any{
				rollbackKeyTag:    wctx.release.TagName,
				rollbackKeyBumped: wctx.release.Bumped(),
			}
			if !wctx.release.Bumped() {
				return data, nil
			}
			if hosted := o.findHostedRelease(ctx, wctx.release.TagName); hosted != nil {
				wctx.releaseURL = hosted.HTMLURL
				data[rollbackKeyReleaseID] = hosted.ID
				o.writeOutputs(ctx, cfg.CIOutput, []output{{"release_url", hosted.HTMLURL}})
			}
			return data, nil
		},
		Compensate: compensator.DeleteRelease,
	})
}

// findHostedRelease reports the release publish created. Lookup failures do not fail the dispatch.
func (o *ReleaseOrchestrator) findHostedRelease(ctx context.Context, tag string) *repository.HostedRelease {
	log := logger.FromContext(ctx)
	hosted, err := lookupRelease(ctx, o.timeouts.networkBackoff(), o.githubRepo, tag)
	switch {
	case errors.Is(err, repository.ErrGithubTokenRequired):
		log.Debug("skipping release lookup without a GitHub token")
		return nil
	case err != nil:
		log.Warn("could not find hosted release", zap.String("tag", tag), zap.Error(err))
		return nil
	}
	return hosted
}

// performRollback replays compensation for a persisted session and removes
// the session once everything was undone.
func (o *ReleaseOrchestrator) performRollback(ctx context.Context, sessionID string) error {
	log := logger.FromContext(ctx)
	if sessionID == "" {
		state, err := o.stateRepo.LoadLatest(ctx)
		if err != nil {
			return fmt.Errorf("failed to load latest session: %w", err)
		}
		sessionID = state.SessionID
	} else {
		exists, err := o.stateRepo.Exists(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("failed to look up session %s: %w", sessionID, err)
		}
		if !exists {
			return fmt.Errorf("%w: %s", repository.ErrSessionNotFound, sessionID)
		}
	}
	saga, err := LoadExistingSaga(ctx, o.stateRepo, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load saga: %w", err)
	}
	saga.rollbackTimeout = o.timeouts.Rollback
	if last := saga.GetState().GetLastOperation(); last != nil {
		log.Info("rolling back session",
			zap.String("session_id", sessionID),
			zap.String("last_operation", string(last.Type)),
			zap.String("last_status", string(last.Status)))
	}
	compensator := NewCompensatingActions(o.gitRepo, o.githubRepo, o.timeouts)
	o.rebuildSagaSteps(saga, compensator)
	rollbackCtx, cancel := context.WithTimeout(ctx, o.timeouts.Rollback)
	defer cancel()
	if err := saga.Rollback(rollbackCtx); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	if err := o.stateRepo.Delete(ctx, sessionID); err != nil {
		log.Warn("failed to remove rolled back session", zap.String("session_id", sessionID), zap.Error(err))
	}
	fmt.Fprintf(o.out, "✅ Rollback of session %s completed successfully\n", sessionID)
	return nil
}

// rebuildSagaSteps reattaches compensating actions, which are not persisted
func (o *ReleaseOrchestrator) rebuildSagaSteps(saga *SagaExecutor, compensator *CompensatingActions) {
	compensateMap := map[domain.OperationType]func(context.Context, map[string]any) error{
		domain.OperationTypeCheckout:          compensator.NoOp,
		domain.OperationTypeConfigureIdentity: compensator.NoOp,
		domain.OperationTypeVersion:           compensator.UndoVersion,
		domain.OperationTypePublish:           compensator.DeleteRelease,
	}
	for _, op := range saga.GetState().Operations {
		if compensate, ok := compensateMap[op.Type]; ok {
			saga.registerCompensation(SagaStep{
				Name:       string(op.Type),
				Type:       op.Type,
				Compensate: compensate,
			})
		}
	}
}

type output struct {
	key   string
	value string
}

// writeOutputs prints key=value lines in CI mode and appends them to $GITHUB_OUTPUT when set.
func (o *ReleaseOrchestrator) writeOutputs(ctx context.Context, ciOutput bool, outputs []output) {
	for _, kv := range outputs {
		o.printCIOutput(ciOutput, "%s=%s\n", kv.key, kv.value)
	}
	path := os.Getenv(envGithubOutput)
	if path == "" {
		return
	}
	if err := appendOutputs(o.fsRepo, path, outputs); err != nil {
		logger.FromContext(ctx).Warn("failed to write step outputs", zap.String("path", path), zap.Error(err))
	}
}

func appendOutputs(fs afero.Fs, path string, outputs []output) error {
	f, err := fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, FilePermissionsReadWrite)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, kv := range outputs {
		if _, err := fmt.Fprintf(f, "%s=%s\n", kv.key, kv.value); err != nil {
			return err
		}
	}
	return nil
}

// printCIOutput prints output in CI format if enabled
func (o *ReleaseOrchestrator) printCIOutput(ciOutput bool, format string, args ...any) {
	if ciOutput {
		fmt.Fprintf(o.out, format, args...)
	}
}

// printStatus prints status messages when not in CI mode
func (o *ReleaseOrchestrator) printStatus(ciOutput bool, message string) {
	if !ciOutput {
		fmt.Fprintln(o.out, message)
	}
}
