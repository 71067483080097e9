/*
Package client wraps the HTTP API of the NL2SQL/ETL backend.

	GET  /ready       200 ready, 425 no data yet, anything else: not ready
	POST /ask         {"question"} -> {"sql","resumen","table","excel"}
	POST /start_etl   {} or {"window_days"} -> {"job_id","window_days"}
	GET  /download/…  Excel artifact referenced by /ask

Non-2xx answers from /ask, /start_etl and downloads surface as *StatusError,
whose Body is the plain-text message the backend sent. Ready returns the raw
status code instead because the readiness poller branches on it.

Every request carries an X-Request-ID header and is recorded in the
etlconsole_http_* metrics.
*/
package client
