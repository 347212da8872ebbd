// Package reporter turns stage outcomes into activity records on the venue's log.
package reporter
