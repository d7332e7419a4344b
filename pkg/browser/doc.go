// Package browser drives a headless Chrome instance through the DevTools
// protocol for the capture command.
package browser
