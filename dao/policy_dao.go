// dao/policy_dao.go
package dao

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	gk_errors "github.com/gatekeeper-project/gatekeeper/errors"
	logger "github.com/gatekeeper-project/gatekeeper/logging"
	"github.com/gatekeeper-project/gatekeeper/model"
)

// PolicyRepository is the durable store of policy records. The decision
// engine and the policy cache depend on this interface, not on Neo4j.
type PolicyRepository interface {
	FindActiveByPriorityDesc(ctx context.Context) ([]model.Policy, error)
	FindByID(ctx context.Context, policyID string) (*model.Policy, error)
	FindByName(ctx context.Context, name string) (*model.Policy, error)
	FindAll(ctx context.Context, limit, offset int) ([]model.Policy, error)
	SearchPolicies(ctx context.Context, criteria model.PolicySearchCriteria) ([]model.Policy, error)
	Save(ctx context.Context, policy model.Policy) (*model.Policy, error)
	DeleteByID(ctx context.Context, policyID string) error
}

type PolicyDAO struct {
	Driver neo4j.Driver
}

func NewPolicyDAO(driver neo4j.Driver) *PolicyDAO {
	dao := &PolicyDAO{Driver: driver}
	if err := dao.ensureConstraints(); err != nil {
		logger.Fatal("Failed to ensure policy constraints", zap.Error(err))
	}
	return dao
}

func (dao *PolicyDAO) ensureConstraints() error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer func() {
		if err := session.Close(); err != nil {
			logger.Error("Failed to close Neo4j session", zap.Error(err))
		}
	}()

	_, err := session.WriteTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		queries := []string{
			`CREATE CONSTRAINT unique_policy_id IF NOT EXISTS
			 FOR (p:POLICY) REQUIRE p.id IS UNIQUE`,
			`CREATE CONSTRAINT unique_policy_name IF NOT EXISTS
			 FOR (p:POLICY) REQUIRE p.name IS UNIQUE`,
		}
		for _, query := range queries {
			if _, err := tx.Run(query, nil); err != nil {
				return nil, fmt.Errorf("failed to create constraint: %w", err)
			}
		}
		return nil, nil
	})
	return err
}

// FindActiveByPriorityDesc returns every active policy, highest priority
// first. Ties keep insertion order via the creation timestamp.
func (dao *PolicyDAO) FindActiveByPriorityDesc(ctx context.Context) ([]model.Policy, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (p:POLICY)
        WHERE p.active = true
        RETURN p
        ORDER BY p.priority DESC, p.createdAt ASC
        `
		records, err := tx.Run(query, nil)
		if err != nil {
			return nil, err
		}
		return collectPolicies(records)
	})
	if err != nil {
		logger.Error("Failed to retrieve active policies", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", gk_errors.ErrDatabaseOperation, err)
	}

	return result.([]model.Policy), nil
}

// FindByID retrieves a single policy by its identifier.
func (dao *PolicyDAO) FindByID(ctx context.Context, policyID string) (*model.Policy, error) {
	return dao.findOne(`MATCH (p:POLICY {id: $value}) RETURN p`, policyID)
}

// FindByName retrieves a single policy by its unique name.
func (dao *PolicyDAO) FindByName(ctx context.Context, name string) (*model.Policy, error) {
	return dao.findOne(`MATCH (p:POLICY {name: $value}) RETURN p`, name)
}

func (dao *PolicyDAO) findOne(query, value string) (*model.Policy, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		records, err := tx.Run(query, map[string]interface{}{"value": value})
		if err != nil {
			return nil, err
		}
		if !records.Next() {
			return nil, gk_errors.ErrPolicyNotFound
		}
		node := records.Record().Values[0].(neo4j.Node)
		return mapNodeToPolicy(node)
	})
	if err != nil {
		if err == gk_errors.ErrPolicyNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", gk_errors.ErrDatabaseOperation, err)
	}

	return result.(*model.Policy), nil
}

// FindAll lists policies ordered by priority with pagination.
func (dao *PolicyDAO) FindAll(ctx context.Context, limit, offset int) ([]model.Policy, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (p:POLICY)
        RETURN p
        ORDER BY p.priority DESC, p.createdAt ASC
        SKIP $offset LIMIT $limit
        `
		records, err := tx.Run(query, map[string]interface{}{"limit": limit, "offset": offset})
		if err != nil {
			return nil, err
		}
		return collectPolicies(records)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gk_errors.ErrDatabaseOperation, err)
	}

	return result.([]model.Policy), nil
}

// SearchPolicies filters policies by the given criteria. Empty criteria
// fields are skipped; results keep the priority ordering.
func (dao *PolicyDAO) SearchPolicies(ctx context.Context, criteria model.PolicySearchCriteria) ([]model.Policy, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	var queryBuilder strings.Builder
	queryBuilder.WriteString("MATCH (p:POLICY) WHERE 1=1")
	params := make(map[string]interface{})

	if criteria.Name != "" {
		queryBuilder.WriteString(" AND toLower(p.name) CONTAINS toLower($name)")
		params["name"] = criteria.Name
	}
	if criteria.Active != nil {
		queryBuilder.WriteString(" AND p.active = $active")
		params["active"] = *criteria.Active
	}
	if criteria.MinPriority != 0 {
		queryBuilder.WriteString(" AND p.priority >= $minPriority")
		params["minPriority"] = criteria.MinPriority
	}
	if criteria.MaxPriority != 0 {
		queryBuilder.WriteString(" AND p.priority <= $maxPriority")
		params["maxPriority"] = criteria.MaxPriority
	}

	queryBuilder.WriteString(" RETURN p ORDER BY p.priority DESC, p.createdAt ASC")

	if criteria.Limit > 0 {
		queryBuilder.WriteString(" LIMIT $limit")
		params["limit"] = criteria.Limit
	}

	result, err := session.ReadTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		records, err := tx.Run(queryBuilder.String(), params)
		if err != nil {
			return nil, err
		}
		return collectPolicies(records)
	})
	if err != nil {
		logger.Error("Failed to search policies", zap.Error(err), zap.Any("criteria", criteria))
		return nil, fmt.Errorf("%w: %v", gk_errors.ErrDatabaseOperation, err)
	}

	return result.([]model.Policy), nil
}

// Save creates the policy when it has no ID yet, otherwise updates it in
// place. New policies get a generated UUID and creation timestamp.
func (dao *PolicyDAO) Save(ctx context.Context, policy model.Policy) (*model.Policy, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	now := time.Now()
	if policy.ID == "" {
		policy.ID = uuid.New().String()
		policy.CreatedAt = now
	}
	policy.UpdatedAt = now

	result, err := session.WriteTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		query := `
        MERGE (p:POLICY {id: $id})
        ON CREATE SET p.createdAt = $createdAt
        SET p.name = $name,
            p.description = $description,
            p.ruleBody = $ruleBody,
            p.resource = $resource,
            p.action = $action,
            p.active = $active,
            p.priority = $priority,
            p.updatedAt = $updatedAt
        RETURN p
        `
		params := map[string]interface{}{
			"id":          policy.ID,
			"name":        policy.Name,
			"description": policy.Description,
			"ruleBody":    policy.RuleBody,
			"resource":    policy.Resource,
			"action":      policy.Action,
			"active":      policy.Active,
			"priority":    policy.Priority,
			"createdAt":   policy.CreatedAt.Format(time.RFC3339Nano),
			"updatedAt":   policy.UpdatedAt.Format(time.RFC3339Nano),
		}
		records, err := tx.Run(query, params)
		if err != nil {
			return nil, err
		}
		if !records.Next() {
			return nil, gk_errors.ErrDatabaseOperation
		}
		node := records.Record().Values[0].(neo4j.Node)
		return mapNodeToPolicy(node)
	})
	if err != nil {
		logger.Error("Failed to save policy",
			zap.Error(err),
			zap.String("policyID", policy.ID),
			zap.String("policyName", policy.Name))
		if neo4j.IsNeo4jError(err) {
			// Unique-name constraint violations surface as conflicts.
			return nil, gk_errors.ErrPolicyConflict
		}
		return nil, fmt.Errorf("%w: %v", gk_errors.ErrDatabaseOperation, err)
	}

	logger.Info("Policy saved",
		zap.String("policyID", policy.ID),
		zap.String("policyName", policy.Name))
	return result.(*model.Policy), nil
}

// DeleteByID removes a policy. Returns ErrPolicyNotFound when nothing matched.
func (dao *PolicyDAO) DeleteByID(ctx context.Context, policyID string) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (p:POLICY {id: $id})
        WITH p, count(p) AS found
        DETACH DELETE p
        RETURN found
        `
		records, err := tx.Run(query, map[string]interface{}{"id": policyID})
		if err != nil {
			return nil, err
		}
		if !records.Next() {
			return nil, gk_errors.ErrPolicyNotFound
		}
		return nil, nil
	})
	if err != nil {
		if err == gk_errors.ErrPolicyNotFound {
			return err
		}
		return fmt.Errorf("%w: %v", gk_errors.ErrDatabaseOperation, err)
	}

	logger.Info("Policy deleted", zap.String("policyID", policyID))
	return nil
}

func collectPolicies(records neo4j.Result) ([]model.Policy, error) {
	policies := []model.Policy{}
	for records.Next() {
		node := records.Record().Values[0].(neo4j.Node)
		policy, err := mapNodeToPolicy(node)
		if err != nil {
			return nil, err
		}
		policies = append(policies, *policy)
	}
	return policies, nil
}

// mapNodeToPolicy converts a Neo4j node into a Policy struct.
func mapNodeToPolicy(node neo4j.Node) (*model.Policy, error) {
	props := node.Props
	policy := &model.Policy{}

	id, ok := props["id"].(string)
	if !ok {
		return nil, fmt.Errorf("failed to assert type for policy ID: %v", props["id"])
	}
	policy.ID = id

	name, ok := props["name"].(string)
	if !ok {
		return nil, fmt.Errorf("failed to assert type for policy name: %v", props["name"])
	}
	policy.Name = name

	if description, ok := props["description"].(string); ok {
		policy.Description = description
	}
	if ruleBody, ok := props["ruleBody"].(string); ok {
		policy.RuleBody = ruleBody
	}
	if resource, ok := props["resource"].(string); ok {
		policy.Resource = resource
	}
	if action, ok := props["action"].(string); ok {
		policy.Action = action
	}
	if active, ok := props["active"].(bool); ok {
		policy.Active = active
	}
	if priority, ok := props["priority"].(int64); ok {
		policy.Priority = int(priority)
	}
	if createdAt, ok := props["createdAt"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			policy.CreatedAt = t
		}
	}
	if updatedAt, ok := props["updatedAt"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
			policy.UpdatedAt = t
		}
	}

	return policy, nil
}
