// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package metrics exposes Prometheus collectors for the API.

InstrumentHandler counts requests and observes latency per method,
canonical path and status. IDs in paths collapse to {id} so label
cardinality stays bounded:

	handler := metrics.InstrumentHandler(mux)
	mux.Handle("GET /metrics", metrics.Handler())

Domain counters are bumped by the handlers through RecordLogin,
RecordDocumentSubmitted, RecordVote and RecordAllocation.
*/
package metrics
