package logging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

func newTestLogger(t *testing.T) (Logger, *zaptest.Buffer) {
	t.Helper()
	buf := &zaptest.Buffer{}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), buf, zapcore.DebugLevel)
	return &zapLogger{z: zap.New(core)}, buf
}

func TestNewLogger_Formats(t *testing.T) {
	for _, format := range []string{"json", "console", ""} {
		l, err := NewLogger(LogConfig{Level: LevelDebug, Format: format, OutputPaths: []string{"stdout"}})
		require.NoError(t, err, format)
		assert.NotNil(t, l)
	}
}

func TestNewLogger_BadOutputPath(t *testing.T) {
	l, err := NewLogger(LogConfig{OutputPaths: []string{"/nonexistent-dir/sub/log.json"}})
	assert.Error(t, err)
	assert.Nil(t, l)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestZapLogger_LevelsAndFields(t *testing.T) {
	l, buf := newTestLogger(t)

	l.Debug("ensure table", String("table", "cmt_address"))
	l.Info("upsert", Int64("case_id", 42), Bool("inserted", true))
	l.Warn("slow migration", Duration("elapsed", 2*time.Second))
	l.Error("describe failed", Err(errors.New("relation missing")))

	out := buf.String()
	assert.Contains(t, out, `"level":"debug"`)
	assert.Contains(t, out, `"table":"cmt_address"`)
	assert.Contains(t, out, `"case_id":42`)
	assert.Contains(t, out, `"inserted":true`)
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"error":"relation missing"`)
}

func TestZapLogger_WithAndNamed(t *testing.T) {
	l, buf := newTestLogger(t)
	l.Named("annexure").With(String("table", "cmt_employment")).Info("msg")
	assert.Contains(t, buf.String(), `"table":"cmt_employment"`)
	assert.Contains(t, buf.String(), `"logger":"annexure"`)
}

func TestErr_Nil(t *testing.T) {
	f := Err(nil)
	assert.Equal(t, "<nil>", f.Value)
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Debug("msg")
	l.Info("msg")
	l.Warn("msg")
	l.Error("msg")
	assert.Equal(t, l, l.With(String("k", "v")))
	assert.Equal(t, l, l.Named("x"))
	assert.NoError(t, l.Sync())
}

func TestFromContext(t *testing.T) {
	l, buf := newTestLogger(t)
	ctx := ContextWithLogger(context.Background(), l.With(String("request_id", "req-1")))

	FromContext(ctx, NewNopLogger()).Info("scoped")
	assert.Contains(t, buf.String(), `"request_id":"req-1"`)

	fallback := NewNopLogger()
	assert.Equal(t, fallback, FromContext(context.Background(), fallback))
}

func TestSetDefault(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	l, _ := newTestLogger(t)
	SetDefault(l)
	assert.Equal(t, l, Default())

	SetDefault(nil)
	assert.Equal(t, l, Default())
}
