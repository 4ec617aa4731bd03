/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry holds the Prometheus metrics and OpenTelemetry tracing
// plumbing shared by the server.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// APIRequestsTotal counts HTTP requests by method, route pattern and status.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heimdall_api_requests_total",
			Help: "Total HTTP API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// APIRequestDuration observes request latency per route.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "heimdall_api_request_duration_seconds",
			Help:    "HTTP API request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	// APIActiveConnections tracks in-flight HTTP requests, long-lived
	// command streams included.
	APIActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "heimdall_api_active_connections",
			Help: "In-flight HTTP requests",
		},
	)

	// CommandsPublished counts play commands issued by scope (player, group).
	CommandsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heimdall_commands_published_total",
			Help: "Play commands published to the command channel",
		},
		[]string{"scope"},
	)

	// CommandStreamsActive tracks open SSE command subscriptions.
	CommandStreamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "heimdall_command_streams_active",
			Help: "Open player command streams",
		},
	)

	// RelayMessages counts cross-instance command relay traffic.
	RelayMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heimdall_relay_messages_total",
			Help: "Command relay messages by direction",
		},
		[]string{"direction"},
	)

	// MediaUploads counts accepted media uploads by detected kind.
	MediaUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heimdall_media_uploads_total",
			Help: "Accepted media uploads by kind",
		},
		[]string{"kind"},
	)

	// DBQueryDuration observes gorm operation latency per table.
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "heimdall_db_query_duration_seconds",
			Help:    "Database operation duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	// DBErrors counts failed database operations, not-found excluded.
	DBErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heimdall_db_errors_total",
			Help: "Database operation errors",
		},
		[]string{"operation"},
	)

	// EventSocketClients tracks connected admin event websockets.
	EventSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "heimdall_event_socket_clients",
			Help: "Connected admin event websocket clients",
		},
	)
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
