// Package approval provides two-person approval requests.
package approval

// Category classifies which policy applies to a request.
type Category string

const (
	CategoryPolicyLock        Category = "POLICY_LOCK"
	CategoryADRApproval       Category = "ADR_APPROVAL"
	CategoryHighRiskDecision  Category = "HIGH_RISK_DECISION"
	CategorySecurityException Category = "SECURITY_EXCEPTION"
	CategoryDataAccess        Category = "DATA_ACCESS"
)

// Categories lists every category in declaration order.
func Categories() []Category {
	return []Category{
		CategoryPolicyLock,
		CategoryADRApproval,
		CategoryHighRiskDecision,
		CategorySecurityException,
		CategoryDataAccess,
	}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// Bypassable reports whether a gate may ever skip the check for c.
func (c Category) Bypassable() bool {
	return c != CategorySecurityException
}
