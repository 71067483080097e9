/*
Package log provides structured logging for etlconsole using zerolog.

The package keeps a single global zerolog.Logger configured once through Init,
plus helpers that derive child loggers carrying a component, job or request
identifier. Output goes to stderr by default because stdout carries the
rendered console (progress bar, log lines, answer cards).

# Usage

	log.Init(log.Config{Level: log.InfoLevel})

	logger := log.WithComponent("readiness")
	logger.Debug().Int("status", 503).Msg("backend not ready, retrying")

	jobLog := log.WithJobID(job.ID)
	jobLog.Info().Int("pct", 45).Msg("progress")

Console output (default):

	2025-01-10T10:30:00Z INF progress component=job job_id=3f2a... pct=45

JSON output (JSONOutput: true):

	{"level":"info","component":"job","job_id":"3f2a...","pct":45,"time":"..."}
*/
package log
