// Package render drives the badge rendering service.
//
// Each work item is submitted as one render request carrying the job's badge
// option snapshot. The service owns compositing and writeback; this client
// only reports success or failure per item. It implements runner.Processor.
package render
