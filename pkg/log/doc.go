/*
Package log wraps zerolog with the context-logger convention used
throughout nodeflow: every component, node, worker, task, and run gets
its own child logger carrying a structured field, rather than call
sites formatting their own prefixes.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	logger := log.WithComponent("manager")
	logger.Info().Msg("manager started")

	nodeLogger := log.WithNodeID(int(n.ID()))
	nodeLogger.Error().Err(err).Msg("node failed")

# Context loggers

WithComponent, WithNodeID, WithWorkerID, and WithTaskID each derive a
zerolog.Logger from the global Logger with one additional field set,
and are meant to be created once per node/worker/task/component and
reused for that object's lifetime rather than re-derived per log line.

WithRunID tags a logger with the run-history key a pipeline invocation
was recorded under (see history.Recorder.StartedAt), so the manager
and any worker logs it emits during one run can be correlated even
when --history-dir accumulates several runs' worth of output across
process restarts.

# Output

Init configures JSON output for machine consumption (--history-dir
pipelines feeding a log aggregator) or a console writer with RFC3339
timestamps for interactive use, selected by Config.JSONOutput. Level
defaults to InfoLevel for an unrecognized or empty Config.Level.
*/
package log
