package domain

// Reputation is the per-user cached running total. It is a materialized
// view over the ledger: Score == Caps.Base + sum of AppliedValue over the
// user's entries, except after an administrative override.
type Reputation struct {
	User  string `json:"user"`
	Score int    `json:"score"`
}

// PermissionRule gates a named capability behind a minimum score.
type PermissionRule struct {
	Name               string `json:"name"`
	Description        string `json:"description,omitempty"`
	RequiredReputation int    `json:"requiredReputation"`
}

// Caps holds the accrual limits. Gain is a positive upper bound on the
// daily applied sum, Loss a negative lower bound (e.g. -250).
type Caps struct {
	Base int
	Gain int
	Loss int
}
