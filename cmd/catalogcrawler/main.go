// Package main provides the entry point for the catalogcrawler CLI.
//
// catalogcrawler harvests tire and disk listings from farpost.ru catalog
// pages through a pool of SOCKS5 proxies and exports them as XML.
//
// Usage:
//
//	catalogcrawler run
//	catalogcrawler run --target-id tires --proxy-id p1
//
// See --help for all available options.
package main

// main is the entry point for catalogcrawler.
func main() {
	Execute()
}
