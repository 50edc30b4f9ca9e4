package calendar

import (
	"strings"

	"villasole/internal/models"
)

// BlockingPolicy decides whether a parsed event blocks the property.
// One pure implementation per platform, swappable without touching the
// synchronization loop.
type BlockingPolicy interface {
	// Blocks returns whether the event occupies dates, and the reason to
	// record on the blocked range.
	Blocks(event models.CalendarEvent) (bool, string)
}

// PolicyRegistry maps platform identifiers to their blocking policy.
type PolicyRegistry struct {
	policies map[string]BlockingPolicy
	fallback BlockingPolicy
}

// NewPolicyRegistry returns the registry with the built-in platform
// policies installed.
func NewPolicyRegistry() *PolicyRegistry {
	keyword := KeywordPolicy{Keywords: []string{
		"reserved", "booked", "closed", "not available", "blocked", "unavailable",
	}}

	return &PolicyRegistry{
		policies: map[string]BlockingPolicy{
			models.PlatformAirbnb:  AllEventsPolicy{},
			models.PlatformBooking: keyword,
			models.PlatformVrbo:    keyword,
		},
		fallback: keyword,
	}
}

// Register installs or replaces the policy for a platform.
func (r *PolicyRegistry) Register(platform string, policy BlockingPolicy) {
	r.policies[strings.ToLower(platform)] = policy
}

// ForPlatform returns the policy for a platform, or the keyword fallback for
// platforms without a dedicated one.
func (r *PolicyRegistry) ForPlatform(platform string) BlockingPolicy {
	if policy, ok := r.policies[strings.ToLower(platform)]; ok {
		return policy
	}
	return r.fallback
}

// AllEventsPolicy treats every event as blocking. Airbnb feeds only contain
// occupied intervals.
type AllEventsPolicy struct{}

func (AllEventsPolicy) Blocks(event models.CalendarEvent) (bool, string) {
	reason := strings.TrimSpace(event.Summary)
	if reason == "" {
		reason = "External reservation"
	}
	return true, reason
}

// KeywordPolicy blocks only events whose summary or description matches one
// of the configured keywords, case-insensitively.
type KeywordPolicy struct {
	Keywords []string
}

func (p KeywordPolicy) Blocks(event models.CalendarEvent) (bool, string) {
	haystack := strings.ToLower(event.Summary + " " + event.Description)
	for _, keyword := range p.Keywords {
		if strings.Contains(haystack, keyword) {
			reason := strings.TrimSpace(event.Summary)
			if reason == "" {
				reason = "External reservation"
			}
			return true, reason
		}
	}
	return false, ""
}
