// Package logging bootstraps the zap logger shared by every matchmaking
// binary, optionally teeing every entry to Grafana Loki. Grounded on the
// teacher's zap.NewProduction() bootstrap (unified-rag-service/main.go)
// plus the pack's own internal/loki push-API client, now wired as a
// second zapcore.Core instead of sitting unused.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/NicholasJacob1990/litgo-match/internal/loki"
)

// New builds a production zap.Logger for service. If LOKI_ENDPOINT is set,
// every log entry is additionally shipped to Loki with a "service" label;
// a push failure is swallowed — shipping logs must never block or fail
// the caller's real work.
func New(service string) (*zap.Logger, error) {
	core := zap.NewProductionConfig()
	zapCore, err := core.Build()
	if err != nil {
		return nil, err
	}

	endpoint := os.Getenv("LOKI_ENDPOINT")
	if endpoint == "" {
		return zapCore, nil
	}

	client := loki.New(endpoint, map[string]string{"service": service})
	tee := zapcore.NewTee(zapCore.Core(), newLokiCore(client, zapCore.Core().Enabled))
	return zap.New(tee, zap.AddCaller()), nil
}

// lokiCore adapts loki.Client to zapcore.Core, forwarding one Entry per
// log line. It holds no buffering of its own — each Write is one HTTP
// push — matching loki.Client's single-Batch Push method.
type lokiCore struct {
	client  *loki.Client
	enabled zapcore.LevelEnabler
	fields  []zapcore.Field
}

func newLokiCore(client *loki.Client, enabled zapcore.LevelEnabler) *lokiCore {
	return &lokiCore{client: client, enabled: enabled}
}

func (c *lokiCore) Enabled(lvl zapcore.Level) bool { return c.enabled.Enabled(lvl) }

func (c *lokiCore) With(fields []zapcore.Field) zapcore.Core {
	return &lokiCore{client: c.client, enabled: c.enabled, fields: append(append([]zapcore.Field{}, c.fields...), fields...)}
}

func (c *lokiCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *lokiCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range append(append([]zapcore.Field{}, c.fields...), fields...) {
		f.AddTo(enc)
	}
	labels := map[string]string{"level": ent.Level.String()}
	go func() {
		_ = c.client.Push(loki.Batch{Entries: []loki.Entry{{
			Timestamp: ent.Time,
			Line:      ent.Message,
			Labels:    labels,
		}}})
	}()
	return nil
}

func (c *lokiCore) Sync() error { return nil }
