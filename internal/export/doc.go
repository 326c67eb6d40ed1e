// Package export writes accumulated tire and disk records as XML
// documents for downstream importers.
package export
