// Package enrich derives metadata for extracted questions: the publication
// year, a provenance "verified" flag based on an allowlist of official exam
// authorities, and the dominant script language of a piece of text.
package enrich
