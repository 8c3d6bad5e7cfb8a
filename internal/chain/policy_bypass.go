package chain

import (
	"context"

	"github.com/riftlabs/interlock/internal/domain"
	"github.com/riftlabs/interlock/internal/policy"
)

// policyBypassed reports whether an override policy exists for
// (subjectKey, methodKey) with Enabled=false. Per §3, such a policy
// bypasses every stage except Audit for that pair — callers use this to
// short-circuit stages 2 through 5 to a pass-through. A missing policy or
// a lookup failure is treated as not-bypassed, matching the override
// helpers' own fail-open behavior.
func policyBypassed(ctx context.Context, policyStore *policy.Store, methodKey domain.MethodKey) bool {
	if policyStore == nil {
		return false
	}
	p, err := policyStore.Find(ctx, SubjectFromContext(ctx).Key(), methodKey)
	if err != nil {
		return false
	}
	return !p.Enabled
}
