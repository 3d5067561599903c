// Package query is the consumer adapter used by rendering code.
//
// It sits in front of a Source (normally the resolver) and keeps a sturdyc
// backed copy of every reference it served. The copy has its own staleness
// budget: once older than StaleTime it is still returned, and a background
// refresh goes to the Source, which may in turn answer from its resolution
// cache. References that could not be resolved render as placeholders and are
// never kept.
package query
