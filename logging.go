package mp4

import log "github.com/sirupsen/logrus"

// logger is the package-level structured logger. Parser corruption,
// the unknown-box fallback, and encode failures all log through this
// rather than fmt.Println; package m4a's save-time offset patching uses
// its own component logger.
var logger = log.WithField("component", "mp4")
