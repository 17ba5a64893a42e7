package dane

import "github.com/sirupsen/logrus"

// defaultLogger is consulted only when a Handle carries no injected Logger;
// it is never mutated by this package (no SetOutput/SetLevel calls), so a
// caller's own use of logrus.StandardLogger() elsewhere is undisturbed.
var defaultLogger = logrus.StandardLogger()

func (h *Handle) logger() *logrus.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return defaultLogger
}

// logEntry returns an entry carrying the base log fields attached to every
// record emitted for this handle's connection.
func (h *Handle) logEntry() *logrus.Entry {
	return h.logger().WithFields(logrus.Fields{
		"handle": h.sniName,
		"thost":  h.store.thost,
	})
}
