package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var inboundBatches = promauto.NewCounter(prometheus.CounterOpts{
	Name: "actioner_inbound_batches",
	Help: "Number of batches read from the inbound stream",
})

var inboundRecords = promauto.NewCounter(prometheus.CounterOpts{
	Name: "actioner_inbound_records",
	Help: "Number of records read from the inbound stream",
})

var inboundReadErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "actioner_inbound_read_errors",
	Help: "Number of failed reads from the inbound stream",
})

var inboundRetriedRecords = promauto.NewCounter(prometheus.CounterOpts{
	Name: "actioner_inbound_retried_records",
	Help: "Number of unacknowledged inbound records reclaimed for another attempt",
})

var apiRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "actioner_api_requests",
	Help: "Number of match API requests",
}, []string{"endpoint"})
