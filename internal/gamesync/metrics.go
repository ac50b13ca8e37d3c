package gamesync

import "expvar"

var (
	metricPollTicks        = expvar.NewInt("gamesync_poll_ticks_total")
	metricPollThrottled    = expvar.NewInt("gamesync_poll_throttled_total")
	metricPollErrors       = expvar.NewInt("gamesync_poll_errors_total")
	metricReconnects       = expvar.NewInt("gamesync_reconnects_total")
	metricReconnectGiveups = expvar.NewInt("gamesync_reconnect_giveups_total")
	metricEventsApplied    = expvar.NewInt("gamesync_events_applied_total")
)
