// Package authz implements the authorization decision engine: an ordered
// policy table of path patterns and the request gate that evaluates it
// against a caller's effective permission set.
package authz

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/miftah-app/miftah/internal/shared"
)

// MatchMode selects how a rule's required permissions are compared against
// the caller's granted set.
type MatchMode int

const (
	// MatchAny satisfies the rule when the caller holds at least one of the
	// required permissions.
	MatchAny MatchMode = iota
	// MatchAll satisfies the rule only when the caller holds every required
	// permission.
	MatchAll
)

// Rule guards all paths matching Pattern. Patterns use `**` to match any
// number of path segments, so `/users/**` covers `/users` and everything
// below it.
type Rule struct {
	Pattern string
	Require []string
	Mode    MatchMode
}

// Satisfied reports whether the granted permission set meets the rule.
// Comparison is byte-exact; permission codes are case-sensitive.
func (r Rule) Satisfied(granted []string) bool {
	if len(r.Require) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(granted))
	for _, p := range granted {
		set[p] = struct{}{}
	}
	if r.Mode == MatchAll {
		for _, p := range r.Require {
			if _, ok := set[p]; !ok {
				return false
			}
		}
		return true
	}
	for _, p := range r.Require {
		if _, ok := set[p]; ok {
			return true
		}
	}
	return false
}

// Table is an ordered list of rules. Evaluation walks the rules in declared
// order and stops at the first pattern that matches the requested path, so a
// narrower pattern must be listed before any broader pattern that would
// otherwise shadow it. Ordering is data here, not an accident of
// registration order.
type Table struct {
	rules []Rule
}

// NewTable validates every pattern and builds a Table preserving rule order.
func NewTable(rules ...Rule) (*Table, error) {
	for _, rule := range rules {
		if rule.Pattern == "" {
			return nil, fmt.Errorf("authz: rule with empty pattern")
		}
		if !doublestar.ValidatePattern(rule.Pattern) {
			return nil, fmt.Errorf("authz: invalid pattern %q", rule.Pattern)
		}
	}
	table := &Table{rules: make([]Rule, len(rules))}
	copy(table.rules, rules)
	return table, nil
}

// MustTable is NewTable for statically declared policies.
func MustTable(rules ...Rule) *Table {
	table, err := NewTable(rules...)
	if err != nil {
		panic(err)
	}
	return table
}

// Match returns the first rule whose pattern matches the path. Later rules
// are never consulted once a match is found.
func (t *Table) Match(path string) (Rule, bool) {
	for _, rule := range t.rules {
		if matchPath(rule.Pattern, path) {
			return rule, true
		}
	}
	return Rule{}, false
}

// Rules returns a copy of the ordered rule list.
func (t *Table) Rules() []Rule {
	rules := make([]Rule, len(t.rules))
	copy(rules, t.rules)
	return rules
}

func matchPath(pattern, path string) bool {
	ok, err := doublestar.Match(pattern, path)
	if err != nil {
		return false
	}
	return ok
}

// DefaultPublicPaths lists the paths reachable without any session: static
// assets, the login surface and the public registration and feedback
// endpoints. Requests to these paths bypass identity resolution entirely.
func DefaultPublicPaths() []string {
	return []string{
		"/",
		"/login",
		"/error",
		"/healthz",
		"/metrics",
		"/css/**",
		"/js/**",
		"/images/**",
		"/static/**",
		"/register/**",
		"/feedback/**",
	}
}

// DefaultPolicy returns the platform policy table. Export rules precede the
// broad reporting rule on purpose: `/reports/export/**` would otherwise be
// swallowed by `/reports/**`.
func DefaultPolicy() *Table {
	return MustTable(
		Rule{Pattern: "/users/**", Require: shared.UserScopes()},
		Rule{Pattern: "/classes/**", Require: shared.ClassScopes()},
		Rule{Pattern: "/enrollments/**", Require: shared.EnrollmentScopes()},
		Rule{Pattern: "/attendance/**", Require: shared.AttendanceScopes()},
		Rule{Pattern: "/assessments/**", Require: shared.AssessmentScopes()},
		Rule{Pattern: "/report-cards/**", Require: shared.ReportCardScopes()},
		Rule{Pattern: "/billing/**", Require: shared.BillingScopes()},
		Rule{Pattern: "/payments/**", Require: shared.PaymentScopes()},
		Rule{Pattern: "/payroll/**", Require: shared.PayrollScopes()},
		Rule{Pattern: "/events/**", Require: shared.EventScopes()},
		Rule{Pattern: "/reports/export/**", Require: []string{shared.PermReportExport}},
		Rule{Pattern: "/reports/**", Require: shared.ReportScopes()},
		Rule{Pattern: "/system/**", Require: shared.SystemScopes()},
	)
}
