/*
Package metrics provides Prometheus instrumentation for etlconsole.

All collectors are package-level variables registered on the default registry
at init. Components update them directly:

	metrics.ReadinessPollsTotal.WithLabelValues("retry").Inc()

	timer := metrics.NewTimer()
	resp, err := httpClient.Do(req)
	timer.ObserveDurationVec(metrics.HTTPRequestDuration, "start_etl")

The exposition endpoint is optional: the CLI serves it only when
--metrics-addr is set.

Metric families:

	etlconsole_readiness_polls_total{outcome}        ready, blocked, retry, error
	etlconsole_readiness_state{state}                polling, ready, blocked
	etlconsole_jobs_started_total
	etlconsole_jobs_finished_total{result}           succeeded, failed
	etlconsole_job_submit_failures_total
	etlconsole_job_progress_percent
	etlconsole_channel_events_total{kind}            progress, detail
	etlconsole_queries_total{result}                 ok, error
	etlconsole_http_requests_total{endpoint,status}
	etlconsole_http_request_duration_seconds{endpoint}
*/
package metrics
