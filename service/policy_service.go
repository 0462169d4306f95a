// service/policy_service.go
package service

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gatekeeper-project/gatekeeper/dao"
	gk_errors "github.com/gatekeeper-project/gatekeeper/errors"
	"github.com/gatekeeper-project/gatekeeper/invalidation"
	logger "github.com/gatekeeper-project/gatekeeper/logging"
	"github.com/gatekeeper-project/gatekeeper/model"
	"github.com/gatekeeper-project/gatekeeper/util"
)

// IPolicyService handles business logic for policy administration. Every
// successful mutation publishes an invalidation event so all instances
// evict their caches.
type IPolicyService interface {
	CreatePolicy(ctx context.Context, policy model.Policy) (*model.Policy, error)
	UpdatePolicy(ctx context.Context, policy model.Policy) (*model.Policy, error)
	DeletePolicy(ctx context.Context, policyID string) error
	GetPolicy(ctx context.Context, policyID string) (*model.Policy, error)
	ListPolicies(ctx context.Context, limit, offset int) ([]model.Policy, error)
	SearchPolicies(ctx context.Context, criteria model.PolicySearchCriteria) ([]model.Policy, error)
	ClearCaches(ctx context.Context) error
}

type PolicyService struct {
	policyRepo     dao.PolicyRepository
	validationUtil *util.ValidationUtil
	bus            invalidation.Bus
}

func NewPolicyService(policyRepo dao.PolicyRepository, validationUtil *util.ValidationUtil, bus invalidation.Bus) *PolicyService {
	return &PolicyService{
		policyRepo:     policyRepo,
		validationUtil: validationUtil,
		bus:            bus,
	}
}

func (s *PolicyService) CreatePolicy(ctx context.Context, policy model.Policy) (*model.Policy, error) {
	applyDefaults(&policy)
	if err := s.validationUtil.ValidatePolicy(policy); err != nil {
		return nil, err
	}

	if existing, err := s.policyRepo.FindByName(ctx, policy.Name); err == nil && existing != nil {
		logger.Warn("Policy name already in use", zap.String("policyName", policy.Name))
		return nil, gk_errors.ErrPolicyConflict
	}

	created, err := s.policyRepo.Save(ctx, policy)
	if err != nil {
		return nil, err
	}

	s.publishMutation(ctx, invalidation.KindCreate, created)
	return created, nil
}

func (s *PolicyService) UpdatePolicy(ctx context.Context, policy model.Policy) (*model.Policy, error) {
	applyDefaults(&policy)
	if err := s.validationUtil.ValidatePolicy(policy); err != nil {
		return nil, err
	}

	existing, err := s.policyRepo.FindByID(ctx, policy.ID)
	if err != nil {
		return nil, err
	}

	// The identifier and creation timestamp are stable across updates.
	policy.CreatedAt = existing.CreatedAt
	updated, err := s.policyRepo.Save(ctx, policy)
	if err != nil {
		return nil, err
	}

	s.publishMutation(ctx, invalidation.KindUpdate, updated)
	return updated, nil
}

func (s *PolicyService) DeletePolicy(ctx context.Context, policyID string) error {
	existing, err := s.policyRepo.FindByID(ctx, policyID)
	if err != nil {
		return err
	}

	if err := s.policyRepo.DeleteByID(ctx, policyID); err != nil {
		return err
	}

	s.publishMutation(ctx, invalidation.KindDelete, existing)
	return nil
}

func (s *PolicyService) GetPolicy(ctx context.Context, policyID string) (*model.Policy, error) {
	return s.policyRepo.FindByID(ctx, policyID)
}

func (s *PolicyService) ListPolicies(ctx context.Context, limit, offset int) ([]model.Policy, error) {
	return s.policyRepo.FindAll(ctx, limit, offset)
}

func (s *PolicyService) SearchPolicies(ctx context.Context, criteria model.PolicySearchCriteria) ([]model.Policy, error) {
	return s.policyRepo.SearchPolicies(ctx, criteria)
}

// ClearCaches publishes an administrative flush. Every instance, this one
// included, evicts both caches on receipt.
func (s *PolicyService) ClearCaches(ctx context.Context) error {
	if err := s.bus.Publish(ctx, invalidation.Event{Kind: invalidation.KindClear}); err != nil {
		logger.Error("Failed to publish cache clear event", zap.Error(err))
		return err
	}
	logger.Info("Cache clear event published")
	return nil
}

// publishMutation announces a committed mutation. Bus errors are logged and
// swallowed: the mutation already committed, and remote instances bound the
// resulting staleness window by their cache TTLs.
func (s *PolicyService) publishMutation(ctx context.Context, kind string, policy *model.Policy) {
	event := invalidation.Event{
		Kind:       kind,
		PolicyID:   policy.ID,
		PolicyName: policy.Name,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.bus.Publish(gctx, event)
	})
	g.Go(func() error {
		s.notifyPolicyChange(kind, policy)
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Error("Failed to publish policy mutation",
			zap.Error(err),
			zap.String("kind", kind),
			zap.String("policyID", policy.ID))
	}
}

func (s *PolicyService) notifyPolicyChange(kind string, policy *model.Policy) {
	logger.Info("Policy mutation committed",
		zap.String("kind", kind),
		zap.String("policyID", policy.ID),
		zap.String("policyName", policy.Name),
		zap.Int("priority", policy.Priority),
		zap.Bool("active", policy.Active))
}

func applyDefaults(policy *model.Policy) {
	if policy.Resource == "" {
		policy.Resource = "*"
	}
	if policy.Action == "" {
		policy.Action = "*"
	}
}
