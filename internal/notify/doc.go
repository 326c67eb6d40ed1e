// Package notify delivers the result documents of a finished crawl by e-mail.
package notify
