// Package inventory loads the catalog target table and the proxy table.
//
// Both tables are semicolon-delimited text files whose first row is a
// header. Identifiers must be unique within each table; a violation fails
// the whole load so no crawl ever starts with an ambiguous pairing.
package inventory
