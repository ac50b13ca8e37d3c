package game

import "expvar"

var (
	metricStaleUpdates  = expvar.NewInt("game_stale_updates_total")
	metricRollbacks     = expvar.NewInt("game_move_rollbacks_total")
	metricMovesAccepted = expvar.NewInt("game_moves_accepted_total")
	metricMovesRejected = expvar.NewInt("game_moves_rejected_total")
)
