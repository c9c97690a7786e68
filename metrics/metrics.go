// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics exports gateway events as Prometheus series.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/gateway"
)

// Sink is an EventSink that counts gateway activity per chain.
type Sink struct {
	preparedMessageCount  *prometheus.CounterVec
	underpaidBatchCount   *prometheus.CounterVec
	executedMessageCount  *prometheus.CounterVec
	failedMessageCount    *prometheus.CounterVec
	repaidBatchCount      *prometheus.CounterVec
	underpaidBatchBacklog *prometheus.GaugeVec
}

var _ gateway.EventSink = (*Sink)(nil)

func NewSink(registerer prometheus.Registerer) *Sink {
	s := Sink{
		preparedMessageCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prepared_message_count",
				Help: "Number of outbound messages accepted into batches",
			},
			[]string{"chain_id", "pool_id"},
		),
		underpaidBatchCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "underpaid_batch_count",
				Help: "Number of batches parked for later repayment",
			},
			[]string{"chain_id"},
		),
		executedMessageCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "executed_message_count",
				Help: "Number of inbound messages processed successfully",
			},
			[]string{"chain_id"},
		),
		failedMessageCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "failed_message_count",
				Help: "Number of inbound messages that failed processing",
			},
			[]string{"chain_id"},
		),
		repaidBatchCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "repaid_batch_count",
				Help: "Number of underpaid batches repaid and dispatched",
			},
			[]string{"chain_id"},
		),
		underpaidBatchBacklog: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "underpaid_batch_backlog",
				Help: "Net count of batches awaiting repayment",
			},
			[]string{"chain_id"},
		),
	}

	registerer.MustRegister(s.preparedMessageCount)
	registerer.MustRegister(s.underpaidBatchCount)
	registerer.MustRegister(s.executedMessageCount)
	registerer.MustRegister(s.failedMessageCount)
	registerer.MustRegister(s.repaidBatchCount)
	registerer.MustRegister(s.underpaidBatchBacklog)

	return &s
}

// Emit maps each event onto its series. Unrecognized events are
// dropped.
func (s *Sink) Emit(e gateway.Event) {
	switch ev := e.(type) {
	case gateway.PrepareMessage:
		s.preparedMessageCount.WithLabelValues(ev.Chain.String(), ev.Pool.String()).Inc()
	case gateway.UnderpaidBatch:
		s.underpaidBatchCount.WithLabelValues(ev.Chain.String()).Inc()
		s.underpaidBatchBacklog.WithLabelValues(ev.Chain.String()).Inc()
	case gateway.ExecuteMessage:
		s.executedMessageCount.WithLabelValues(ev.Chain.String()).Inc()
	case gateway.FailMessage:
		s.failedMessageCount.WithLabelValues(ev.Chain.String()).Inc()
	case gateway.RepayBatch:
		s.repaidBatchCount.WithLabelValues(ev.Chain.String()).Inc()
		s.underpaidBatchBacklog.WithLabelValues(ev.Chain.String()).Dec()
	}
}
