package app

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/relabs-tech/node_diagnosis/internal/accelrange"
	"github.com/relabs-tech/node_diagnosis/internal/diagnosis"
	"github.com/relabs-tech/node_diagnosis/internal/window"
)

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(topic string, retained bool, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{topic, retained, payload})
	return nil
}

func (p *fakePublisher) onTopic(topic string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, m := range p.msgs {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

type fakeWriter struct {
	mu     sync.Mutex
	writes []accelrange.Code
	err    error
}

func (w *fakeWriter) ApplyAccelRange(c accelrange.Code) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.writes = append(w.writes, c)
	return nil
}

var testTopics = Topics{Verdict: "node/verdict", Range: "node/accel_range"}

func newTestService(t *testing.T, code accelrange.Code) (*Service, *fakeWriter, *fakePublisher) {
	t.Helper()
	writer := &fakeWriter{}
	pub := &fakePublisher{}
	svc := NewService(diagnosis.DefaultParams(), accelrange.NewState(code), writer, zaptest.NewLogger(t))
	svc.SetPublisher(pub, testTopics)
	return svc, writer, pub
}

func saturatedWindow() *window.Window {
	return &window.Window{Acceleration: []float64{0.5, 2.0, 2.1, 1.9, 0.2}}
}

func TestService_Start(t *testing.T) {
	svc, writer, pub := newTestService(t, accelrange.Range8G)

	require.NoError(t, svc.Start())
	assert.Equal(t, []accelrange.Code{accelrange.Range8G}, writer.writes)

	msgs := pub.onTopic(testTopics.Range)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].retained)
	assert.JSONEq(t, `{"code":"0x10","index":2,"g":8}`, string(msgs[0].payload))
}

func TestService_DiagnoseStepsRange(t *testing.T) {
	svc, writer, pub := newTestService(t, accelrange.Range2G)

	rep, err := svc.Diagnose(saturatedWindow(), diagnosis.FaultSquare)
	require.NoError(t, err)

	assert.NotEmpty(t, rep.ID)
	assert.Equal(t, diagnosis.KindRecovered, rep.Kind)
	assert.Equal(t, 2.0, rep.RangeBefore.G)
	assert.Equal(t, 4.0, rep.RangeAfter.G)
	assert.Empty(t, rep.Warnings)
	assert.Nil(t, rep.Acceleration)

	assert.Equal(t, []accelrange.Code{accelrange.Range2G, accelrange.Range4G}, writer.writes)
	assert.Equal(t, accelrange.Range4G, svc.Range())

	verdicts := pub.onTopic(testTopics.Verdict)
	require.Len(t, verdicts, 1)
	var got Report
	require.NoError(t, json.Unmarshal(verdicts[0].payload, &got))
	assert.Equal(t, rep.ID, got.ID)
	assert.Equal(t, diagnosis.FaultSquare, got.Fault)

	ranges := pub.onTopic(testTopics.Range)
	require.Len(t, ranges, 1)
	assert.True(t, ranges[0].retained)

	m := svc.metrics
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verdicts.WithLabelValues("square", "recovered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rangeSteps.WithLabelValues("up")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.rangeG))
}

func TestService_RecoveredChannelIsReported(t *testing.T) {
	svc, _, _ := newTestService(t, accelrange.Range4G)
	accel := make([]float64, 120)
	for i := range accel {
		accel[i] = 0.01 * float64(i)
	}
	w := &window.Window{Acceleration: accel, IsActive: true}

	rep, err := svc.Diagnose(w, diagnosis.FaultTrend)
	require.NoError(t, err)
	assert.Equal(t, diagnosis.KindRecovered, rep.Kind)
	assert.Len(t, rep.Acceleration, 120)
}

func TestService_WriterFailureIsAWarning(t *testing.T) {
	svc, writer, _ := newTestService(t, accelrange.Range2G)
	writer.err = errors.New("spi: busy")

	rep, err := svc.Diagnose(saturatedWindow(), diagnosis.FaultSquare)
	require.NoError(t, err)
	assert.Equal(t, accelrange.Range4G, svc.Range())
	assert.Len(t, rep.Warnings, 2)

	// the next window re-applies the in-memory range
	writer.err = nil
	_, err = svc.Diagnose(&window.Window{Acceleration: []float64{0, 1}}, diagnosis.FaultDrift)
	require.NoError(t, err)
	assert.Equal(t, []accelrange.Code{accelrange.Range4G}, writer.writes)
}

func TestService_PublishFailureIsAWarning(t *testing.T) {
	svc, _, pub := newTestService(t, accelrange.Range4G)
	pub.err = errors.New("not connected")

	rep, err := svc.Diagnose(&window.Window{Acceleration: []float64{0, 1}}, diagnosis.FaultDrift)
	require.NoError(t, err)
	require.Len(t, rep.Warnings, 1)
	assert.Contains(t, rep.Warnings[0], "not connected")
}

func TestService_Dispatch(t *testing.T) {
	svc, _, pub := newTestService(t, accelrange.Range4G)

	rep, err := svc.Dispatch(&window.Window{Acceleration: []float64{0, 1}}, 9)
	require.NoError(t, err)
	assert.Equal(t, diagnosis.KindInvalid, rep.Kind)
	assert.Equal(t, "Invalid choice.", rep.Message)

	require.Len(t, pub.onTopic(testTopics.Verdict), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.verdicts.WithLabelValues("none", "invalid")))
}

func TestService_HandleWindowMessage(t *testing.T) {
	svc, _, _ := newTestService(t, accelrange.Range4G)

	rep, err := svc.HandleWindowMessage([]byte(`{
		"fault": "drift",
		"window": {"battery_voltage": [3.5, 3.3, 3.5, 3.4, 3.5], "acceleration": [0.1, 0.2]}
	}`))
	require.NoError(t, err)
	assert.Equal(t, diagnosis.FaultDrift, rep.Fault)
	assert.Equal(t, diagnosis.KindDetected, rep.Kind)

	rep, err = svc.HandleWindowMessage([]byte(`{"fault": "1", "window": {"acceleration": []}}`))
	require.NoError(t, err)
	assert.Equal(t, diagnosis.KindHardFailure, rep.Kind)

	for _, payload := range []string{
		`not json`,
		`{"fault": "spike", "window": {"acceleration": [1]}}`,
		`{"fault": "drift"}`,
		`{"fault": "missing", "window": {"acceleration": [1, 2], "duration": -1}}`,
	} {
		_, err := svc.HandleWindowMessage([]byte(payload))
		assert.ErrorIs(t, err, ErrBadRequest, payload)
	}
}

func TestService_StepRange(t *testing.T) {
	svc, writer, pub := newTestService(t, accelrange.Range16G)

	step := svc.StepRange(true)
	assert.False(t, step.Changed)
	assert.Empty(t, writer.writes)

	step = svc.StepRange(false)
	assert.True(t, step.Changed)
	assert.Equal(t, accelrange.Range8G, step.To)
	assert.Equal(t, []accelrange.Code{accelrange.Range8G}, writer.writes)
	assert.Len(t, pub.onTopic(testTopics.Range), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.rangeSteps.WithLabelValues("down")))
}

func TestService_WithoutPublisher(t *testing.T) {
	svc := NewService(diagnosis.DefaultParams(), accelrange.NewState(accelrange.Range2G), nil, nil)

	require.NoError(t, svc.Start())
	rep, err := svc.Diagnose(saturatedWindow(), diagnosis.FaultSquare)
	require.NoError(t, err)
	assert.Empty(t, rep.Warnings)
	assert.Equal(t, accelrange.Range4G, svc.Range())
}
