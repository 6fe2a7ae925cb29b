// Package logging provides structured logging for ringing sessions.
//
// The package wraps log/slog and writes JSON lines, either to a file in a
// log directory or to stderr. Child loggers carry persistent attributes so
// that every line emitted while ringing can be traced back to a session,
// a tower and the component that wrote it:
//
//	logger, err := logging.NewLogger("/var/log/wheatley", "info")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	rhythmLog := logger.WithSession(id).WithTower(4123).WithComponent("rhythm")
//	rhythmLog.Debug("waiting for bell", "bell", "3", "stroke", "HANDSTROKE")
//
// The level can be changed while the logger is in use with [Logger.SetLevel];
// children share the level of the logger they were derived from.
//
// Use [NopLogger] in tests.
package logging
