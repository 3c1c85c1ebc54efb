// Package door holds the request and outcome types shared by every
// transport binding: the action being requested, the per-transport door
// setup, and the single terminal outcome reported through a ResultSink.
package door
