// Copyright 2024, Chef.  All rights reserved.
// https://github.com/hmzdot/totem
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package stun

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	packetResultHandled     = "handled"
	packetResultMalformed   = "malformed"
	packetResultTooLarge    = "too_large"
	packetResultRateLimited = "rate_limited"
	packetResultUnexpected  = "unexpected_type"
	packetResultPanic       = "panic"
	packetResultWriteFailed = "write_failed"
)

var (
	metricPackets = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "totem",
		Subsystem: "stun",
		Name:      "packets_total",
		Help:      "Total number of received datagrams, by how they were handled.",
	}, []string{"result"})

	metricResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "totem",
		Subsystem: "stun",
		Name:      "responses_total",
		Help:      "Total number of responses sent, by message type.",
	}, []string{"type"})

	metricCredentialsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "totem",
		Subsystem: "stun",
		Name:      "credentials_issued_total",
		Help:      "Total number of username/password pairs issued by the shared secret flow.",
	})
)
