package observability

import (
	"context"

	gu "github.com/xraph/go-utils/metrics"

	"github.com/xraph/harness/checkpoint"
	"github.com/xraph/harness/ext"
	"github.com/xraph/harness/id"
	"github.com/xraph/harness/redirect"
	"github.com/xraph/harness/session"
	"github.com/xraph/harness/work"
)

// Compile-time interface checks.
var (
	_ ext.Extension         = (*MetricsExtension)(nil)
	_ ext.SessionStarted    = (*MetricsExtension)(nil)
	_ ext.SessionCompleted  = (*MetricsExtension)(nil)
	_ ext.SessionFailed     = (*MetricsExtension)(nil)
	_ ext.CheckpointCreated = (*MetricsExtension)(nil)
	_ ext.RedirectDetected  = (*MetricsExtension)(nil)
	_ ext.HarnessPaused     = (*MetricsExtension)(nil)
	_ ext.ScaleUp           = (*MetricsExtension)(nil)
	_ ext.ScaleDown         = (*MetricsExtension)(nil)
)

// MetricsExtension records system-wide lifecycle metrics via go-utils
// MetricFactory. Register it as a harness extension to automatically
// track session rates, checkpoint counts, redirect volume, pauses, and
// scale operations.
type MetricsExtension struct {
	SessionsStarted    gu.Counter
	SessionsCompleted  gu.Counter
	SessionsFailed     gu.Counter
	CheckpointsCreated gu.Counter
	RedirectsDetected  gu.Counter
	Pauses             gu.Counter
	ScaleUps           gu.Counter
	ScaleDowns         gu.Counter
}

// NewMetricsExtension creates a MetricsExtension using a default metrics collector.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithFactory(gu.NewMetricsCollector("harness/observability"))
}

// NewMetricsExtensionWithFactory creates a MetricsExtension with the
// provided MetricFactory.
func NewMetricsExtensionWithFactory(factory gu.MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		SessionsStarted:    factory.Counter("harness.session.started"),
		SessionsCompleted:  factory.Counter("harness.session.completed"),
		SessionsFailed:     factory.Counter("harness.session.failed"),
		CheckpointsCreated: factory.Counter("harness.checkpoint.created"),
		RedirectsDetected:  factory.Counter("harness.redirect.detected"),
		Pauses:             factory.Counter("harness.paused"),
		ScaleUps:           factory.Counter("harness.scale.up"),
		ScaleDowns:         factory.Counter("harness.scale.down"),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ── Session lifecycle hooks ─────────────────────────

// OnSessionStarted implements ext.SessionStarted.
func (m *MetricsExtension) OnSessionStarted(_ context.Context, _ id.WorkerID, _ *work.Item) error {
	m.SessionsStarted.Inc()
	return nil
}

// OnSessionCompleted implements ext.SessionCompleted.
func (m *MetricsExtension) OnSessionCompleted(_ context.Context, _ *session.Result) error {
	m.SessionsCompleted.Inc()
	return nil
}

// OnSessionFailed implements ext.SessionFailed.
func (m *MetricsExtension) OnSessionFailed(_ context.Context, _ *session.Result) error {
	m.SessionsFailed.Inc()
	return nil
}

// ── Run lifecycle hooks ─────────────────────────────

// OnCheckpointCreated implements ext.CheckpointCreated.
func (m *MetricsExtension) OnCheckpointCreated(_ context.Context, _ *checkpoint.Checkpoint) error {
	m.CheckpointsCreated.Inc()
	return nil
}

// OnRedirectDetected implements ext.RedirectDetected.
func (m *MetricsExtension) OnRedirectDetected(_ context.Context, redirects []redirect.Redirect) error {
	for range redirects {
		m.RedirectsDetected.Inc()
	}
	return nil
}

// OnHarnessPaused implements ext.HarnessPaused.
func (m *MetricsExtension) OnHarnessPaused(_ context.Context, _ id.HarnessID, _ string) error {
	m.Pauses.Inc()
	return nil
}

// OnScaleUp implements ext.ScaleUp.
func (m *MetricsExtension) OnScaleUp(_ context.Context, _ int) error {
	m.ScaleUps.Inc()
	return nil
}

// OnScaleDown implements ext.ScaleDown.
func (m *MetricsExtension) OnScaleDown(_ context.Context, _ int) error {
	m.ScaleDowns.Inc()
	return nil
}
