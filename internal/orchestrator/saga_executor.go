package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/compozy/release-dispatch/internal/domain"
	"github.com/compozy/release-dispatch/internal/logger"
	"github.com/compozy/release-dispatch/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SagaStep represents a single step in the saga workflow
type SagaStep struct {
	Name       string
	Type       domain.OperationType
	Execute    func(ctx context.Context) (rollbackData map[string]any, err error)
	Compensate func(ctx context.Context, rollbackData map[string]any) error
}

// SagaExecutor runs steps in order and, when rollback is enabled, persists progress
// and compensates completed steps after a failure.
//
// Steps run exactly once. The release commands are not idempotent, so a failed
// step is never retried here.
type SagaExecutor struct {
	sessionID       string
	stateRepo       repository.StateRepository
	state           *domain.RollbackState
	steps           []SagaStep
	enableRollback  bool
	rollbackTimeout time.Duration
}

// NewSagaExecutor creates a new saga executor
func NewSagaExecutor(stateRepo repository.StateRepository, enableRollback bool) *SagaExecutor {
	sessionID := uuid.New().String()
	return &SagaExecutor{
		sessionID:       sessionID,
		stateRepo:       stateRepo,
		state:           domain.NewRollbackState(sessionID),
		steps:           []SagaStep{},
		enableRollback:  enableRollback,
		rollbackTimeout: DefaultTimeouts().Rollback,
	}
}

// LoadExistingSaga loads an existing saga from state
func LoadExistingSaga(
	ctx context.Context,
	stateRepo repository.StateRepository,
	sessionID string,
) (*SagaExecutor, error) {
	state, err := stateRepo.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load saga state: %w", err)
	}
	return &SagaExecutor{
		sessionID:       sessionID,
		stateRepo:       stateRepo,
		state:           state,
		steps:           []SagaStep{},
		enableRollback:  true,
		rollbackTimeout: DefaultTimeouts().Rollback,
	}, nil
}

// AddStep adds a step to the saga
func (s *SagaExecutor) AddStep(step SagaStep) {
	s.steps = append(s.steps, step)
	s.state.AddOperation(step.Type)
}

// registerCompensation attaches a compensating action to an operation already in the loaded state.
func (s *SagaExecutor) registerCompensation(step SagaStep) {
	s.steps = append(s.steps, step)
}

// Execute runs the saga workflow, rolling back on failure when enabled
func (s *SagaExecutor) Execute(ctx context.Context) error {
	s.state.Status = domain.WorkflowStatusRunning
	if s.enableRollback {
		if err := s.saveState(ctx); err != nil {
			return fmt.Errorf("failed to save initial state: %w", err)
		}
	}
	for _, step := range s.steps {
		if err := s.executeStep(ctx, step); err != nil {
			s.state.MarkOperationFailed(step.Type, err)
			if s.enableRollback {
				s.saveStateBestEffort(ctx, "before rollback")
				rollbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.rollbackTimeout)
				rollbackErr := s.rollback(rollbackCtx)
				cancel()
				if rollbackErr != nil {
					return fmt.Errorf("step '%s' failed: %w, rollback also failed: %v",
						step.Name, err, rollbackErr)
				}
			}
			return fmt.Errorf("step '%s' failed: %w", step.Name, err)
		}
	}
	s.state.Status = domain.WorkflowStatusCompleted
	if s.enableRollback {
		s.saveStateBestEffort(ctx, "at completion")
	}
	return nil
}

func (s *SagaExecutor) executeStep(ctx context.Context, step SagaStep) error {
	log := logger.FromContext(ctx)
	s.state.MarkOperationStarted(step.Type)
	if s.enableRollback {
		s.saveStateBestEffort(ctx, "after marking operation started")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	log.Debug("executing step", zap.String("step", step.Name))
	rollbackData, err := step.Execute(ctx)
	if err != nil {
		return err
	}
	s.state.MarkOperationCompleted(step.Type, rollbackData)
	if s.enableRollback {
		s.saveStateBestEffort(ctx, "after marking operation completed")
	}
	return nil
}

// Rollback executes compensating actions for completed operations
func (s *SagaExecutor) Rollback(ctx context.Context) error {
	return s.rollback(ctx)
}

func (s *SagaExecutor) rollback(ctx context.Context) error {
	log := logger.FromContext(ctx).With(zap.String("session_id", s.sessionID))
	log.Info("starting rollback")
	completedOps := s.state.GetCompletedOperations()
	if len(completedOps) == 0 {
		log.Info("no operations to roll back")
		return nil
	}
	for _, op := range completedOps {
		select {
		case <-ctx.Done():
			return fmt.Errorf("rollback canceled: %w", ctx.Err())
		default:
		}
		step := s.findStepByType(op.Type)
		if step == nil || step.Compensate == nil {
			continue
		}
		log.Info("rolling back step", zap.String("step", step.Name))
		if err := step.Compensate(ctx, op.RollbackData); err != nil {
			log.Error("failed to roll back step", zap.String("step", step.Name), zap.Error(err))
			return fmt.Errorf("rollback failed for %s: %w", step.Name, err)
		}
		s.state.MarkOperationRolledBack(op.Type)
		if s.enableRollback {
			s.saveStateBestEffort(ctx, "during rollback")
		}
	}
	s.state.Status = domain.WorkflowStatusRolledBack
	if s.enableRollback {
		s.saveStateBestEffort(ctx, "after rollback")
	}
	log.Info("rollback completed")
	return nil
}

// findStepByType finds a saga step by operation type
func (s *SagaExecutor) findStepByType(opType domain.OperationType) *SagaStep {
	for i := range s.steps {
		if s.steps[i].Type == opType {
			return &s.steps[i]
		}
	}
	return nil
}

// saveState persists the current state
func (s *SagaExecutor) saveState(ctx context.Context) error {
	return s.stateRepo.Save(ctx, s.state)
}

func (s *SagaExecutor) saveStateBestEffort(ctx context.Context, when string) {
	if err := s.saveState(ctx); err != nil {
		logger.FromContext(ctx).Warn("failed to save saga state", zap.String("when", when), zap.Error(err))
	}
}

// SessionID returns the identifier the state is persisted under
func (s *SagaExecutor) SessionID() string {
	return s.sessionID
}

// GetState returns the current saga state
func (s *SagaExecutor) GetState() *domain.RollbackState {
	return s.state
}

// SetReleaseType sets the requested release type in the state
func (s *SagaExecutor) SetReleaseType(rt domain.ReleaseType) {
	s.state.ReleaseType = rt
}

// SetVersion sets the version in the state
func (s *SagaExecutor) SetVersion(version string) {
	s.state.Version = version
}

// SetBranch sets the branch the release was cut from
func (s *SagaExecutor) SetBranch(branch string) {
	s.state.Branch = branch
}

// SetHeadBefore sets the commit HEAD pointed to before versioning
func (s *SagaExecutor) SetHeadBefore(sha string) {
	s.state.HeadBefore = sha
}
