package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownPlan is returned when a plan name does not match any known plan.
var ErrUnknownPlan = errors.New("unknown plan")

// Plan identifies a subscription plan.
type Plan int

const (
	PlanPro Plan = iota
	PlanMax5x
	PlanMax20x
)

// PlanInfo describes the fixed limits of a plan.
type PlanInfo struct {
	Name        string
	Description string
	TokenLimit  uint64
}

var planTable = map[Plan]PlanInfo{
	PlanPro:    {Name: "Pro", Description: "Pro ($20/month)", TokenLimit: 8_744_628},
	PlanMax5x:  {Name: "Max 5x", Description: "Max 5x ($100/month)", TokenLimit: 100_000_000},
	PlanMax20x: {Name: "Max 20x", Description: "Max 20x ($200/month)", TokenLimit: 400_000_000},
}

// Plans returns every plan in display order.
func Plans() []Plan {
	return []Plan{PlanPro, PlanMax5x, PlanMax20x}
}

// Info returns the plan's table entry. Unknown values fall back to Pro.
func (p Plan) Info() PlanInfo {
	if info, ok := planTable[p]; ok {
		return info
	}
	return planTable[PlanPro]
}

// String returns the plan name.
func (p Plan) String() string {
	return p.Info().Name
}

// TokenLimit returns the token limit of the plan.
func (p Plan) TokenLimit() uint64 {
	return p.Info().TokenLimit
}

// Next cycles to the next plan.
func (p Plan) Next() Plan {
	plans := Plans()
	for i, candidate := range plans {
		if candidate == p {
			return plans[(i+1)%len(plans)]
		}
	}
	return plans[0]
}

// ParsePlan accepts the display name in any case, with or without
// separators ("Max 5x", "max5x", "max-20x").
func ParsePlan(name string) (Plan, error) {
	want := normalizePlanName(name)
	for _, p := range Plans() {
		if normalizePlanName(p.String()) == want {
			return p, nil
		}
	}
	return PlanPro, fmt.Errorf("%w: %q", ErrUnknownPlan, name)
}

func normalizePlanName(name string) string {
	r := strings.NewReplacer(" ", "", "-", "", "_", "")
	return strings.ToLower(r.Replace(strings.TrimSpace(name)))
}
