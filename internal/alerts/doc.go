// Package alerts evaluates threshold rules against analyses and delivers
// webhook notifications when a rule fires or resolves.
//
// Rules are "field op value" expressions. Layer fields (z_score, measured_um,
// status) are tested against every comparison row, and each matching layer
// is its own alert. Analysis fields (quality_score, total_thickness_um,
// analysis_failed) produce at most one alert per source.
//
// A firing alert is suppressed for the rule's cooldown after it fires and is
// resolved as soon as its condition clears. Resolved alerts are kept in a
// bounded history and reported by Active for one hour.
package alerts
