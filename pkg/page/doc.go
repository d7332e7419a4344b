// Package page renders the HTML/CSS animation loaded by the capture command.
package page
