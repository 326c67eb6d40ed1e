// Package extract turns tire and disk item pages into output records.
//
// Fields are located by their data-field attribute. Text is cleaned of
// newlines, tabs and non-breaking spaces and normalized to NFC. Prices
// are listed per set on the site and are divided by the in-set quantity
// to give a per-unit price.
package extract
