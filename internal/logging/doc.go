// Package logging provides structured logging for the todo service.
//
// [Logger] wraps log/slog with a JSON handler. Child loggers carry
// persistent attributes that correlate a line with the component that
// wrote it, the HTTP request it served, and the todo it touched:
//
//	logger, err := logging.NewLogger("/var/log/todo", logging.LevelInfo)
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	reqLog := logger.WithComponent("server").WithRequest(id)
//	reqLog.WithTask(42).Warn("subtask generation failed", "outcome", "no_json")
//
// When a log directory is configured, output goes to todo.log in that
// directory through a [RotatingWriter]; otherwise it goes to stderr.
//
// [ReadLogs], [FilterLogs] and [WriteLogEntries] read todo.log back for the
// "todo logs" command, filtering by level, time range, component, request
// or task and exporting as text, JSON or CSV.
package logging
