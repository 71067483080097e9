/*
Package storage keeps the local history of the console in a BoltDB file.

Two buckets live in <data-dir>/etlconsole.db, both keyed by ID and holding
JSON values:

	jobs     types.JobRecord    ETL jobs launched from this console
	queries  types.QueryRecord  questions asked in the chat

Only lifecycle summaries are stored. Individual progress events are not
persisted: the Recorder folds them into the job record (last message, last
percent, final state) as they are published on the event broker. Detail
lines are not recorded at all.

	store, err := storage.NewBoltStore(dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	sub := broker.SubscribeReliable(storage.RecordedEvents...)
	go storage.NewRecorder(store).Run(ctx, sub)

The subscription is reliable so that a burst of events never costs a job its
final state.

BoltDB takes an exclusive file lock, so a second console sharing the same
data directory fails to open the store after a short timeout.
*/
package storage
