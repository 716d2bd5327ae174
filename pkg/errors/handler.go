package errors

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Reporter logs structured errors at the boundary of a consuming service.
// Core packages return errors; services decide where to report them.
type Reporter struct {
	logger *zap.Logger
}

// NewReporter creates a new error reporter
func NewReporter(logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{logger: logger}
}

// Report logs err at the level matching its severity
func (r *Reporter) Report(err error) {
	if err == nil {
		return
	}
	severity := SeverityOf(err)
	if ce := r.logger.Check(LevelFor(severity), message(err)); ce != nil {
		ce.Write(Fields(err)...)
	}
}

// ReportAdvisories logs the advisories of a successful result
func (r *Reporter) ReportAdvisories(advisories []Advisory) {
	for _, a := range advisories {
		fields := []zap.Field{
			zap.String("severity", string(a.Severity)),
			zap.String("code", a.Code),
		}
		if a.Service != "" {
			fields = append(fields, zap.String("service", a.Service))
		}
		if ce := r.logger.Check(LevelFor(a.Severity), a.Message); ce != nil {
			ce.Write(fields...)
		}
	}
}

// LevelFor maps a severity to a zap level
func LevelFor(severity Severity) zapcore.Level {
	switch severity {
	case SeverityCritical, SeverityError:
		return zapcore.ErrorLevel
	case SeverityWarning:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

// Fields returns the structured log fields for err, including the
// attribution of every link in the chain
func Fields(err error) []zap.Field {
	e, ok := As(err)
	if !ok {
		return []zap.Field{zap.Error(err)}
	}

	fields := []zap.Field{
		zap.String("error_kind", string(e.Kind)),
		zap.String("error_code", e.Code),
		zap.String("severity", string(e.Severity)),
		zap.Bool("retryable", IsRetryable(err)),
	}
	if e.Service != "" {
		fields = append(fields, zap.String("service", e.Service))
	}
	if origin := Origin(err); origin != "" && origin != e.Service {
		fields = append(fields, zap.String("origin_service", origin))
	}
	if len(e.Details) > 0 {
		fields = append(fields, zap.Any("details", e.Details))
	}

	chain := Chain(err)
	if len(chain) > 1 {
		links := make([]string, 0, len(chain))
		for _, link := range chain {
			links = append(links, link.Service+"/"+string(link.Kind)+":"+link.Code)
		}
		fields = append(fields, zap.Strings("chain", links))
	}
	if root := Root(err); root != nil && root != error(e) {
		fields = append(fields, zap.NamedError("root_cause", root))
	}
	return fields
}

func message(err error) string {
	if e, ok := As(err); ok {
		return e.Message
	}
	return err.Error()
}
