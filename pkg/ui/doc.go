// Package ui provides the terminal output of ytshorts: colored print
// helpers, the per-cycle progress line and cycle notifications.
package ui
