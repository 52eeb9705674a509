package pipeline

import "context"

// Sync runs extract, then load when extract succeeded. It returns the first
// failed Outcome, or an ok Outcome carrying both messages.
func Sync(ctx context.Context, e *Extractor, l *Loader) Outcome {
	out := e.Run(ctx)
	if !out.OK() {
		return out
	}

	loaded := l.Run(ctx)
	if !loaded.OK() {
		return loaded
	}
	return Outcome{Status: StatusOK, Message: out.Message + "; " + loaded.Message}
}
