// Package report renders run summaries.
//
// This package contains writers for different output formats:
//   - SimpleWriter: human-readable text for the terminal
//   - JSONWriter: structured JSON for tool integration
//   - MarkdownWriter: a shareable document with a mermaid chart
//
// Writers implement the Writer interface, so they can be composed with
// MultiWriter for multi-format output.
package report
