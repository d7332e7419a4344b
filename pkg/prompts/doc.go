// Package prompts supplies the prompt used by each production cycle, either
// a single configured prompt or a rotating list read from a file that can be
// edited while the loop runs.
package prompts
