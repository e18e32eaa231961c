package config

// FeatureFlags toggles optional subsystems without code changes. Flags guard
// behavior that is safe to run without: caching, recommendations, outbound
// integrations. Core lifecycle and progression logic is never flag-gated.
type FeatureFlags struct {
	// Recommendations enables the personalized recommendation query. When
	// off, the query falls back to the plain active catalog ordering.
	Recommendations bool `envconfig:"FEATURE_RECOMMENDATIONS" default:"true"`

	// Materialization enables the recurring-template sweep. Turning it off
	// stops new instances; existing instances keep their lifecycle.
	Materialization bool `envconfig:"FEATURE_MATERIALIZATION" default:"true"`

	// LedgerCredits enables outbound XP credits to the ledger. Reward
	// fields on participation records are written either way.
	LedgerCredits bool `envconfig:"FEATURE_LEDGER_CREDITS" default:"true"`

	// LinkPreviews enables evidence link resolution on submissions.
	LinkPreviews bool `envconfig:"FEATURE_LINK_PREVIEWS" default:"true"`

	// BonusEvents enables bonus-tier-unlocked event publication.
	BonusEvents bool `envconfig:"FEATURE_BONUS_EVENTS" default:"true"`
}
