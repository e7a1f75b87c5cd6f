/*
Package log provides structured logging for the sync engine using zerolog.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})
	log.Info("engine starting")

	connLog := log.WithComponent("conn")
	connLog.Info().Str("host", host).Msg("connected")

Context loggers (WithComponent, WithPath, WithQueryTag, WithWriteID) attach a
single field and return a child logger; combine them with .With() for more.

# Do

  - Use Info level in production, Debug only for troubleshooting.
  - Log errors with .Err(err), never string-concatenate them.
  - Never log auth tokens or credential file contents.
*/
package log
