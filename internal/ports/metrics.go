package ports

import "time"

// Metrics records engine activity. Implementations must be safe for concurrent use.
type Metrics interface {
	ObserveTick(subsystem string, d time.Duration, err error)
	TickSkipped(subsystem string)
	MarketsSkipped(subsystem, reason string, n int)
	UpstreamError(source string)
	SetLedger(balance float64, open int)
	SetOpportunities(n int)
}
