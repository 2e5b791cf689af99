// package tasks implements the sync engine: the playlist reconciler, the
// message-driven pipeline that choreographs scraping, matching and syncing,
// and the cycle scheduler.
//
// The pipeline stages communicate exclusively over the bus topics; each
// stage is an independent at-least-once consumer, which is what lets the
// whole choreography survive restarts mid-cycle.
package tasks
