// Package checkpoint persists the progress of a crawl session on disk so
// that an interrupted session can be resumed.
//
// Each target owns one directory below the checkpoint root:
//
//	<root>/<target id>/links.json
//	<root>/<target id>/cookies.json
//	<root>/<target id>/tires.json
//	<root>/<target id>/disks.json
//	<root>/<target id>/progress.json
//
// Files are replaced atomically. A directory is removed once the target
// has been exported and delivered.
package checkpoint
