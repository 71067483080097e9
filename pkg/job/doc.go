/*
Package job drives one backend ETL run from submission to its outcome.

The Controller owns the job state machine:

	Idle ──Start──▶ Submitting ──job_id──▶ AwaitingProgress
	                    │                      │
	                 rejected            pct 100 │ pct -1
	                    ▼                      ▼
	                  Idle ◀──settle── Succeeded / Failed

Start posts /start_etl and joins the job's room on the push channel after a
short delay. Progress events move the view's bar and message; detail lines
are appended to the log whatever the state. A terminal percent ends the job,
and after the settle delay the overlay closes and controls are re-enabled.

While a job is in flight the Guard is blocked. Navigation is intercepted
with NavigationWarning, leaving needs confirmation, and a second Start is
refused.
*/
package job
