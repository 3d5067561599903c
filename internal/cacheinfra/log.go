package cacheinfra

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// logBridge sends sturdyc's slog-style output to logrus.
type logBridge struct {
	log logrus.FieldLogger
}

func (b *logBridge) Debug(msg string, args ...any) { b.entry(args).Debug(msg) }
func (b *logBridge) Info(msg string, args ...any)  { b.entry(args).Info(msg) }
func (b *logBridge) Warn(msg string, args ...any)  { b.entry(args).Warn(msg) }
func (b *logBridge) Error(msg string, args ...any) { b.entry(args).Error(msg) }

func (b *logBridge) entry(args []any) logrus.FieldLogger {
	fields := argsToFields(args)
	fields["component"] = "sturdyc"
	return b.log.WithFields(fields)
}

// argsToFields pairs up alternating keys and values. A trailing value without
// a key is kept under "extra".
func argsToFields(args []any) logrus.Fields {
	fields := make(logrus.Fields, len(args)/2+1)
	for i := 0; i < len(args); i += 2 {
		if i+1 == len(args) {
			fields["extra"] = args[i]
			break
		}
		fields[fmt.Sprint(args[i])] = args[i+1]
	}
	return fields
}
