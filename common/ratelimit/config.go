package ratelimit

// Scope groups routes that share a rate limit counter. Each client gets
// its own counter per scope.
type Scope struct {
	Name          string
	Limit         int64 // Requests allowed per window
	WindowSeconds int   // Time window in seconds
	Description   string
}

// Default scope configurations. Auth is tight to slow brute force,
// execute covers anything that fires a workflow, mutate covers CRUD
// writes and read covers everything else.
var (
	ScopeAuth = Scope{
		Name:          "auth",
		Limit:         5,
		WindowSeconds: 60,
		Description:   "Login and password operations - 5/minute",
	}
	ScopeExecute = Scope{
		Name:          "execute",
		Limit:         10,
		WindowSeconds: 60,
		Description:   "Manual runs and webhook triggers - 10/minute",
	}
	ScopeMutate = Scope{
		Name:          "mutate",
		Limit:         60,
		WindowSeconds: 60,
		Description:   "Workflow and settings writes - 60/minute",
	}
	ScopeRead = Scope{
		Name:          "read",
		Limit:         120,
		WindowSeconds: 60,
		Description:   "Read-only API calls - 120/minute",
	}
)

// WithLimit returns a copy of the scope with an overridden limit.
// Non-positive overrides keep the default.
func (s Scope) WithLimit(limit int) Scope {
	if limit > 0 {
		s.Limit = int64(limit)
	}
	return s
}

// AllScopes returns the configured scopes for documentation/API responses
func AllScopes() []Scope {
	return []Scope{ScopeAuth, ScopeExecute, ScopeMutate, ScopeRead}
}
