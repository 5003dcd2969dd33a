// Copyright 2025-2026 The rbspy Authors
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

package process

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	lvSuccess = "success"
	lvFail    = "fail"
)

type metrics struct {
	attempts  prometheus.Counter
	inspect   *prometheus.CounterVec
	fallbacks prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		attempts: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "spytools_process_info_attempts_total",
			Help: "Total number of process snapshot construction attempts.",
		}),
		inspect: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "spytools_process_info_total",
			Help: "Total number of process snapshot constructions.",
		}, []string{"result"}),
		fallbacks: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "spytools_process_info_binary_fallbacks_total",
			Help: "Total number of times binary region selection fell back to the first mapped region.",
		}),
	}
	m.inspect.WithLabelValues(lvSuccess)
	m.inspect.WithLabelValues(lvFail)
	return m
}
