// controller/controllers.go
package controller

import (
	"github.com/gatekeeper-project/gatekeeper/audit"
	"github.com/gatekeeper-project/gatekeeper/service"
)

type Controllers struct {
	Access *AccessController
	Policy *PolicyController
	Audit  *AuditController
}

func InitializeControllers(engine Authorizer, policyService service.IPolicyService, auditService audit.Service) *Controllers {
	return &Controllers{
		Access: NewAccessController(engine),
		Policy: NewPolicyController(policyService),
		Audit:  NewAuditController(auditService),
	}
}
