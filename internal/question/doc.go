// Package question defines the persisted previous-year question record, the
// typed patch used to mutate it field by field, and the storage contract the
// ingestion pipeline and the batch jobs share.
package question
