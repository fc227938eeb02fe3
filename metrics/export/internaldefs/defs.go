package internaldefs

import (
	goMFA "github.com/MrEthical07/goMFA"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   goMFA.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   goMFA.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goMFA.MetricFirstFactorSuccess, Name: "gomfa_first_factor_success_total", Help: "Password checks that succeeded."},
	{ID: goMFA.MetricFirstFactorFailure, Name: "gomfa_first_factor_failure_total", Help: "Password checks that failed."},
	{ID: goMFA.MetricSecondFactorRequired, Name: "gomfa_second_factor_required_total", Help: "Logins that issued an ephemeral token."},
	{ID: goMFA.MetricSecondFactorSuccess, Name: "gomfa_second_factor_success_total", Help: "Second factor checks that issued a credential."},
	{ID: goMFA.MetricSecondFactorFailure, Name: "gomfa_second_factor_failure_total", Help: "Second factor checks that failed."},
	{ID: goMFA.MetricEphemeralTokenRejected, Name: "gomfa_ephemeral_token_rejected_total", Help: "Ephemeral tokens rejected as malformed, expired or stale."},
	{ID: goMFA.MetricBackupCodeUsed, Name: "gomfa_backup_code_used_total", Help: "Backup codes consumed."},
	{ID: goMFA.MetricBackupCodeRegenerated, Name: "gomfa_backup_code_regenerated_total", Help: "Backup code sets regenerated."},
	{ID: goMFA.MetricCodeDispatched, Name: "gomfa_code_dispatched_total", Help: "Codes handed to a delivery transport."},
	{ID: goMFA.MetricCodeDeliveryFailed, Name: "gomfa_code_delivery_failed_total", Help: "Code deliveries that failed."},
	{ID: goMFA.MetricMethodRegistered, Name: "gomfa_method_registered_total", Help: "Pending methods created."},
	{ID: goMFA.MetricMethodActivated, Name: "gomfa_method_activated_total", Help: "Methods confirmed and activated."},
	{ID: goMFA.MetricMethodDeactivated, Name: "gomfa_method_deactivated_total", Help: "Methods deactivated."},
	{ID: goMFA.MetricPrimaryChanged, Name: "gomfa_primary_changed_total", Help: "Primary method hand-offs."},
	{ID: goMFA.MetricProtectedActionRejected, Name: "gomfa_protected_action_rejected_total", Help: "Code-protected actions rejected for a bad code."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goMFA.MetricSecondFactorLatency, Name: "gomfa_second_factor_latency_seconds", Help: "Second factor check latency."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The last
// engine bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters
// that flatten buckets into gauges.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight bucket array, padding with
// zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
