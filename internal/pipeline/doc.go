// Package pipeline runs crawl sessions.
//
// A crawl session processes one catalog target through one proxy as a
// sequence of steps over a SessionReport: load the checkpoint, harvest
// catalog links, crawl the items. Whatever happens, the session then
// releases its resources. On success the records are exported, the
// notification is sent and the checkpoint is removed. On failure the
// records are snapshotted and the checkpoint is kept for the next run.
//
// The Orchestrator pairs targets with proxies and runs every session
// concurrently through a BatchProcessor. One failing session never
// cancels its siblings.
package pipeline
