// util/validation_util.go

package util

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	gk_errors "github.com/gatekeeper-project/gatekeeper/errors"
	"github.com/gatekeeper-project/gatekeeper/model"
)

type ValidationUtil struct {
	validate *validator.Validate
}

func NewValidationUtil() *ValidationUtil {
	return &ValidationUtil{validate: validator.New()}
}

func (v *ValidationUtil) ValidatePolicy(policy model.Policy) error {
	if err := v.validate.Var(policy.Name, "required"); err != nil {
		return fmt.Errorf("%w: policy name cannot be empty", gk_errors.ErrInvalidPolicyData)
	}
	if err := v.validate.Var(policy.RuleBody, "required"); err != nil {
		return fmt.Errorf("%w: policy rule body cannot be empty", gk_errors.ErrInvalidPolicyData)
	}
	// Priority is unbounded by the engine; only the patterns need shape checks.
	if err := v.validate.Var(policy.Resource, "required"); err != nil {
		return fmt.Errorf("%w: policy resource pattern cannot be empty", gk_errors.ErrInvalidPolicyData)
	}
	if err := v.validate.Var(policy.Action, "required"); err != nil {
		return fmt.Errorf("%w: policy action pattern cannot be empty", gk_errors.ErrInvalidPolicyData)
	}
	return nil
}

func (v *ValidationUtil) ValidateAccessRequest(request model.AccessRequest) error {
	if err := v.validate.Var(request.UserID, "required"); err != nil {
		return fmt.Errorf("%w: user id cannot be empty", gk_errors.ErrInvalidAccessRequest)
	}
	if err := v.validate.Var(request.Resource, "required"); err != nil {
		return fmt.Errorf("%w: resource cannot be empty", gk_errors.ErrInvalidAccessRequest)
	}
	if err := v.validate.Var(request.Action, "required"); err != nil {
		return fmt.Errorf("%w: action cannot be empty", gk_errors.ErrInvalidAccessRequest)
	}
	return nil
}
