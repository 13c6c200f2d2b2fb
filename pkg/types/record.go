// Package types provides core data types for logmill.
package types

import "time"

// TimestampLayout is the wire format for access-log timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// LogRecord represents one observed HTTP request.
//
// A record is immutable once ingested. Identity is positional (ingestion
// order), not content-based; duplicate rows are legal and counted
// separately.
type LogRecord struct {
	// ClientAddress is the raw client address field. It should parse as an
	// IPv4/IPv6 literal; invalid values are retained and flagged via ValidIP.
	ClientAddress string `json:"client_address"`

	// Timestamp is the raw timestamp field in "YYYY-MM-DD HH:MM:SS" form.
	Timestamp string `json:"timestamp"`

	// Path is the requested resource. Empty string is a legal, distinct value.
	Path string `json:"path"`

	// StatusCode is the HTTP status code and the partition key.
	StatusCode int `json:"status_code"`

	// UserAgent is the raw client-agent string, not normalized.
	UserAgent string `json:"user_agent"`

	// ValidIP reports whether ClientAddress parsed as an IP literal.
	// Advisory only: records with bad addresses still count everywhere.
	ValidIP bool `json:"valid_ip"`

	// Time is the parsed Timestamp, valid only when HasTime is true.
	// Records without a parseable timestamp are excluded from trend
	// analysis but remain valid for every other analysis.
	Time    time.Time `json:"-"`
	HasTime bool      `json:"has_time"`
}
