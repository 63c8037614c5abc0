// Package di contains dependency injection tokens for the policy context.
package di

import (
	"github.com/fd1az/autosave-engine/business/policy/app"
	"github.com/fd1az/autosave-engine/internal/di"
)

// Public service tokens - exposed to other modules
var (
	PolicyService = di.NewToken[*app.PolicyService]("policy.PolicyService")
)

// Private dependency tokens - internal to policy module
var (
	Executor  = di.NewToken[app.Executor]("policy:executor")
	DCARunner = di.NewToken[*app.DCARunner]("policy:dcaRunner")
)

// GetPolicyService returns the policy service.
func GetPolicyService(c di.ServiceRegistry) *app.PolicyService {
	return di.GetToken(c, PolicyService)
}

// GetExecutor returns the DCA executor.
func GetExecutor(c di.ServiceRegistry) app.Executor {
	return di.GetToken(c, Executor)
}

// GetDCARunner returns the DCA runner.
func GetDCARunner(c di.ServiceRegistry) *app.DCARunner {
	return di.GetToken(c, DCARunner)
}
