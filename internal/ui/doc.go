// Package ui provides the terminal output of doorctl: outcome lines, the
// door table, a wait spinner and interactive prompts.
//
// Colors are ANSI codes rendered through Lip Gloss. SetColorMode applies the
// --no-color flag and the output.color setting:
//
//	ColorSuccess (green)  - the door did what was asked
//	ColorError   (red)    - local or door side failure
//	ColorWarning (yellow) - prompts and notices
//	ColorMuted   (gray)   - timing and secondary text
//
// Wait shows a Bubble Tea spinner while a session runs, but only on a
// terminal; otherwise it blocks silently.
package ui
