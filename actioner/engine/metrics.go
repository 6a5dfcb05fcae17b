package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var recordProcessDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "actioner_record_duration_sec",
	Help: "Total duration of processing a single match record",
})

var recordProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "actioner_records_processed",
	Help: "Number of match records processed, by final state",
}, []string{"state"})

var recordFailureCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "actioner_record_failures",
	Help: "Number of match records which failed processing",
}, []string{"kind"})

var batchProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "actioner_batches_processed",
	Help: "Number of batches processed, by status",
}, []string{"status"})

var messagesPublishedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "actioner_messages_published",
	Help: "Number of outbound messages published",
}, []string{"queue"})

var publishFailureCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "actioner_publish_failures",
	Help: "Number of outbound messages which could not be published after retries",
}, []string{"queue"})

var actionsSupersededCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "actioner_actions_superseded",
	Help: "Number of action labels dropped because a higher-precedence action was present",
})

var configAnomalyCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "actioner_config_anomalies",
	Help: "Number of policy configuration anomalies encountered (eg, mutual supersession)",
})

var reactionsSkippedCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "actioner_reactions_skipped",
	Help: "Number of match records where reactions were disabled",
})
