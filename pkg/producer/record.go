package producer

import "github.com/ava-labs/stream-producer/pkg/streamclient"

// Record is one unit of data destined for the stream. Callers must not modify
// Data after handing the record to a producer.
type Record struct {
	Key  string
	Data []byte
}

// FailedRecord is a record the service rejected, with the last error the
// service returned for it.
type FailedRecord struct {
	Record
	ErrorCode    string
	ErrorMessage string
}

// shutdownSignal is compared by identity and never delivered.
var shutdownSignal = &Record{}

func toEntries(records []Record) []streamclient.Entry {
	entries := make([]streamclient.Entry, len(records))
	for i, r := range records {
		entries[i] = streamclient.Entry{PartitionKey: r.Key, Data: r.Data}
	}
	return entries
}

func recordsOf(failed []FailedRecord) []Record {
	records := make([]Record, len(failed))
	for i, f := range failed {
		records[i] = f.Record
	}
	return records
}
