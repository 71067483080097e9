/*
Package readiness waits for the backend to be ready before the console
accepts input.

A Poller asks /ready at a fixed interval. 200 means ready, 425 means the
backend has no data yet and the console stays blocked, anything else
(including network errors) is retried. Listeners are told about each
transition, and Done closes once polling stops on 200 or 425.
*/
package readiness
