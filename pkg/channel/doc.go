// Package channel is the Socket.IO push channel carrying ETL progress from
// the backend. Conn joins a job's room and turns progress and detail events
// into types.Event values.
package channel
