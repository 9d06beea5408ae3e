package notice

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	var r Recorder
	_, ok := r.Last()
	assert.False(t, ok)

	r.Notify(Info("Conectado", ""))
	r.Notify(Error("Error", "sin conexión"))
	r.Notify(Error("Error", "otra vez"))

	assert.Len(t, r.Notices(), 3)
	assert.Equal(t, 2, r.Count(LevelError))
	assert.Equal(t, 1, r.Count(LevelInfo))

	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, "otra vez", last.Message)
}

func TestMulti_SkipsNil(t *testing.T) {
	var a, b Recorder
	Multi{&a, nil, &b}.Notify(Success("ok", ""))

	assert.Len(t, a.Notices(), 1)
	assert.Len(t, b.Notices(), 1)
}

func TestLog_WritesLevelAndTransaction(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	n := Warning("Sesión cerrada", "otro dispositivo")
	n.TransactionID = "T1"
	Log{Logger: logger}.Notify(n)

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "transaction=T1")
}

func TestNotifierFunc(t *testing.T) {
	var got Notice
	NotifierFunc(func(n Notice) { got = n }).Notify(Info("a", "b"))
	assert.Equal(t, "a", got.Title)
}
