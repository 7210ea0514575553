package xres

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	defaultInstrumentationName = "github.com/omeyang/xown/pkg/resource/xres"

	metricAcquired        = "xown.resource.acquired"
	metricReleased        = "xown.resource.released"
	metricReleaseFailures = "xown.resource.release_failures"
	metricDetached        = "xown.resource.detached"
	metricLeaked          = "xown.resource.leaked"
	metricLive            = "xown.resource.live"
)

type otelConfig struct {
	instrumentationName string
	meterProvider       metric.MeterProvider
}

// OTelOption 定义 OTel Observer 的配置选项。
type OTelOption func(*otelConfig)

// WithInstrumentationName 设置 OTel instrumentation 名称。
func WithInstrumentationName(name string) OTelOption {
	return func(cfg *otelConfig) {
		if name != "" {
			cfg.instrumentationName = name
		}
	}
}

// WithMeterProvider 设置 MeterProvider，默认使用全局 provider。
func WithMeterProvider(provider metric.MeterProvider) OTelOption {
	return func(cfg *otelConfig) {
		if provider != nil {
			cfg.meterProvider = provider
		}
	}
}

// NewOTelObserver 创建基于 OpenTelemetry metric 的 Observer。
//
// 指标（均带 kind、owner 属性）：
//   - xown.resource.acquired / released / release_failures / detached / leaked: 计数器
//   - xown.resource.live: 仍被持有的资源数（UpDownCounter）
func NewOTelObserver(opts ...OTelOption) (Observer, error) {
	cfg := &otelConfig{
		instrumentationName: defaultInstrumentationName,
		meterProvider:       otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	meter := cfg.meterProvider.Meter(cfg.instrumentationName)

	o := &otelObserver{}
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&o.acquired, metricAcquired, "resources taken over by an owner"},
		{&o.released, metricReleased, "resources released"},
		{&o.failures, metricReleaseFailures, "release operations that returned an error"},
		{&o.detached, metricDetached, "resources handed off without release"},
		{&o.leaked, metricLeaked, "owners collected while still holding a resource"},
	}
	for _, c := range counters {
		inst, err := meter.Int64Counter(c.name,
			metric.WithDescription(c.desc),
			metric.WithUnit("{resource}"),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCreateInstrument, c.name, err)
		}
		*c.dst = inst
	}

	live, err := meter.Int64UpDownCounter(metricLive,
		metric.WithDescription("resources currently held"),
		metric.WithUnit("{resource}"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCreateInstrument, metricLive, err)
	}
	o.live = live
	return o, nil
}

type otelObserver struct {
	acquired metric.Int64Counter
	released metric.Int64Counter
	failures metric.Int64Counter
	detached metric.Int64Counter
	leaked   metric.Int64Counter
	live     metric.Int64UpDownCounter
}

func eventAttrs(ev Event) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("kind", ev.Kind),
		attribute.String("owner", ev.Owner),
	)
}

func (o *otelObserver) Acquired(ctx context.Context, ev Event) {
	attrs := eventAttrs(ev)
	o.acquired.Add(ctx, 1, attrs)
	o.live.Add(ctx, 1, attrs)
}

func (o *otelObserver) Released(ctx context.Context, ev Event, err error) {
	attrs := eventAttrs(ev)
	o.released.Add(ctx, 1, attrs)
	o.live.Add(ctx, -1, attrs)
	if err != nil {
		o.failures.Add(ctx, 1, attrs)
	}
}

func (o *otelObserver) Detached(ctx context.Context, ev Event) {
	attrs := eventAttrs(ev)
	o.detached.Add(ctx, 1, attrs)
	o.live.Add(ctx, -1, attrs)
}

func (o *otelObserver) Leaked(ctx context.Context, ev Event) {
	o.leaked.Add(ctx, 1, eventAttrs(ev))
}

var _ Observer = (*otelObserver)(nil)
