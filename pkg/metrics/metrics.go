// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-keyset.
//
// go-keyset is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package metrics provides Prometheus instrumentation for primitive
// operations. The composed capability objects record every produce and
// consume call here, labeled by primitive family and operation, never by
// key id: key identities must not leak into a metrics endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all go-keyset metrics.
	Namespace = "keyset"

	// Label names
	LabelPrimitive = "primitive"
	LabelOperation = "operation"
	LabelStatus    = "status"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Primitive family names
	PrimitiveAEAD      = "aead"
	PrimitiveDAEAD     = "daead"
	PrimitiveHybrid    = "hybrid"
	PrimitiveSignature = "signature"

	// Operation names
	OpEncrypt = "encrypt"
	OpDecrypt = "decrypt"
	OpSign    = "sign"
	OpVerify  = "verify"
)

var (
	// OperationsTotal counts primitive operations by family, operation,
	// and outcome.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of primitive operations by family, operation, and status",
		},
		[]string{LabelPrimitive, LabelOperation, LabelStatus},
	)

	// OperationDuration tracks primitive operation latency in seconds.
	// Buckets are tuned for in-process cryptographic operations with a
	// tail for KMS-backed primitives.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of primitive operations in seconds",
			Buckets:   []float64{.00005, .0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{LabelPrimitive, LabelOperation},
	)
)

// RecordOperation records one primitive operation outcome and its
// duration.
func RecordOperation(primitive, operation string, start time.Time, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	OperationsTotal.WithLabelValues(primitive, operation, status).Inc()
	OperationDuration.WithLabelValues(primitive, operation).Observe(time.Since(start).Seconds())
}
