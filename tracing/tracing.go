// Copyright 2025 The flowkv Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tracing builds the process-wide trace.TracerProvider. When
// tracing is disabled it hands out a no-op provider so span creation stays
// on the hot path at effectively zero cost; when enabled it wires the
// OpenTelemetry SDK with a stdout exporter, leaving the choice of a real
// backend (Jaeger, OTLP collector) to deployment.
package tracing

import (
	"context"
	"io"

	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowkv/flowkv/common"
)

// Options configures the provider built by New.
type Options struct {
	// Enabled mirrors the config's [tracing] enabled switch: when false,
	// New returns a no-op provider.
	Enabled bool
	// Writer receives span output when Enabled; defaults to io.Discard
	// (set to os.Stdout to see spans on the console).
	Writer io.Writer
}

// New builds a trace.TracerProvider per Options. Callers are responsible
// for calling Shutdown on the returned provider if it is an
// *sdktrace.TracerProvider (no-op otherwise).
func New(opt Options) (trace.TracerProvider, error) {
	if !opt.Enabled {
		return trace.NewNoopTracerProvider(), nil
	}

	w := opt.Writer
	if w == nil {
		w = io.Discard
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, err
	}

	res := resource.NewSchemaless(
		semconvServiceName(common.App),
	)

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	), nil
}

// Shutdown flushes and stops provider if it carries pending spans.
func Shutdown(ctx context.Context, provider trace.TracerProvider) error {
	if sdk, ok := provider.(*sdktrace.TracerProvider); ok {
		return sdk.Shutdown(ctx)
	}
	return nil
}
