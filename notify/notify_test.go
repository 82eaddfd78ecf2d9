package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/athena/pkg/errors"
	"github.com/YuminosukeSato/athena/pkg/log"
)

var fixed = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

type failingSink struct{ calls int }

func (f *failingSink) Notify(ctx context.Context, a Alert) error {
	f.calls++
	return errors.New("telegram down")
}

func TestDeliverForwardsAndSwallowsSinkErrors(t *testing.T) {
	tl, _ := log.NewTestLogger(log.LevelDebug)
	prev := log.GetLogger()
	log.SetLogger(tl)
	defer log.SetLogger(prev)

	mem := &MemorySink{}
	bad := &failingSink{}
	n := New("run-1", bad, mem).WithClock(func() time.Time { return fixed })

	a := n.Deliver(context.Background(), Warning, "z1", "xgboost", "bias detected")
	assert.Equal(t, "run-1", a.RunID)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, fixed, a.Time)

	assert.Equal(t, 1, bad.calls)
	require.Len(t, mem.Alerts(), 1)
	assert.Equal(t, "bias detected", mem.Alerts()[0].Message)

	assert.True(t, tl.ContainsMessage("bias detected"))
	assert.True(t, tl.ContainsMessage("Alert delivery failed"))
	assert.True(t, tl.ContainsField(log.ZoneKey, "z1"))
}

func TestRecordDoesNotDeliver(t *testing.T) {
	mem := &MemorySink{}
	n := New("run-2", mem)
	n.Record(context.Background(), Info, "", "", "local only")
	assert.Empty(t, mem.Alerts())
}

func TestMute(t *testing.T) {
	mem := &MemorySink{}
	n := New("run-3", mem)
	n.Mute()
	n.Deliver(context.Background(), Error, "", "", "quiet")
	assert.Empty(t, mem.Alerts())
}

func TestWriterSinkText(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriterSink(&buf)
	err := s.Notify(context.Background(), Alert{Level: Warning, Zone: "z", Algorithm: "knn", Message: "slow", Time: fixed})
	require.NoError(t, err)
	assert.Equal(t, "2025-05-01 12:00:00 WARNING [z/knn] slow\n", buf.String())
}

func TestWriterSinkJSON(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONWriterSink(&buf)
	require.NoError(t, s.Notify(context.Background(), Alert{RunID: "r", Level: Info, Message: "done", Time: fixed}))

	var got Alert
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "done", got.Message)
	assert.Equal(t, Info, got.Level)
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaSink(t *testing.T) {
	w := &fakeWriter{}
	s := NewKafkaSinkWithWriter(w, "athena.alerts")
	require.NoError(t, s.Notify(context.Background(), Alert{RunID: "r", Zone: "z9", Message: "m"}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "z9", string(w.msgs[0].Key))

	var a Alert
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &a))
	assert.Equal(t, "m", a.Message)

	w.err = errors.New("broker unreachable")
	err := s.Notify(context.Background(), Alert{RunID: "r"})
	assert.True(t, errors.IsConnectivity(err))
	require.NoError(t, s.Close())
}
