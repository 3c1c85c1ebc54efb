package ui

// Unicode symbols for status indicators.
const (
	SymbolSuccess  = "✓" // Door action succeeded
	SymbolFail     = "✗" // Door action failed
	SymbolPending  = "○" // Not paired / not configured
	SymbolComplete = "●" // Ready
)
