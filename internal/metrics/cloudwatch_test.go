package metrics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raincheck/internal/types"
)

type fakeCloudWatch struct {
	mu     sync.Mutex
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (f *fakeCloudWatch) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, f.err
}

func (f *fakeCloudWatch) datums() []cwtypes.MetricDatum {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []cwtypes.MetricDatum
	for _, in := range f.inputs {
		out = append(out, in.MetricData...)
	}
	return out
}

func newTestCloudWatch(client CloudWatchClient) *CloudWatch {
	cw := NewCloudWatch(client, "RainCheck", slog.New(slog.NewTextHandler(io.Discard, nil)))
	cw.now = func() time.Time { return time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC) }
	return cw
}

func dims(d cwtypes.MetricDatum) map[string]string {
	out := make(map[string]string, len(d.Dimensions))
	for _, dm := range d.Dimensions {
		out[aws.ToString(dm.Name)] = aws.ToString(dm.Value)
	}
	return out
}

func TestCloudWatch_BuffersUntilFlush(t *testing.T) {
	client := &fakeCloudWatch{}
	cw := newTestCloudWatch(client)

	cw.RecordRequest("POST", "/v1/predict", "200", 120*time.Millisecond)
	require.Empty(t, client.inputs)

	cw.Flush(context.Background())

	require.Len(t, client.inputs, 1)
	assert.Equal(t, "RainCheck", aws.ToString(client.inputs[0].Namespace))

	data := client.datums()
	require.Len(t, data, 2)
	assert.Equal(t, types.MetricAPILatency, aws.ToString(data[0].MetricName))
	assert.Equal(t, 120.0, aws.ToFloat64(data[0].Value))
	assert.Equal(t, cwtypes.StandardUnitMilliseconds, data[0].Unit)
	assert.Equal(t, types.MetricAPIRequestCount, aws.ToString(data[1].MetricName))
	assert.Equal(t, map[string]string{
		types.DimMethod:   "POST",
		types.DimEndpoint: "/v1/predict",
		types.DimStatus:   "200",
	}, dims(data[1]))
}

func TestCloudWatch_FlushEmptyIsNoop(t *testing.T) {
	client := &fakeCloudWatch{}
	newTestCloudWatch(client).Flush(context.Background())
	assert.Empty(t, client.inputs)
}

func TestCloudWatch_AutoFlushAtBatchSize(t *testing.T) {
	client := &fakeCloudWatch{}
	cw := newTestCloudWatch(client)

	for i := 0; i < cloudWatchBatchSize; i++ {
		cw.RecordWeatherCache(types.SourceForecast, i%2 == 0)
	}

	require.Len(t, client.inputs, 1)
	assert.Len(t, client.inputs[0].MetricData, cloudWatchBatchSize)
}

func TestCloudWatch_DomainDatums(t *testing.T) {
	client := &fakeCloudWatch{}
	cw := newTestCloudWatch(client)

	cw.RecordPrediction("daegu", types.ConfidenceMedium, 0.62)
	cw.RecordWeatherFetch(types.SourceHistorical, false)
	cw.RecordWeatherCache(types.SourceForecast, true)
	cw.SetModelsLoaded(9)
	require.NoError(t, cw.Close())

	data := client.datums()
	require.Len(t, data, 5)

	assert.Equal(t, types.MetricPrediction, aws.ToString(data[0].MetricName))
	assert.Equal(t, 0.62, aws.ToFloat64(data[0].Value))
	assert.Equal(t, map[string]string{types.DimStadium: "daegu", types.DimConfidence: "medium"}, dims(data[0]))

	assert.Equal(t, types.MetricWeatherFetch, aws.ToString(data[1].MetricName))
	assert.Equal(t, "failure", dims(data[1])[types.DimOutcome])
	assert.Equal(t, types.MetricExternalAPIFailure, aws.ToString(data[2].MetricName))
	assert.Equal(t, "historical", dims(data[2])[types.DimSource])

	assert.Equal(t, types.MetricWeatherCacheHit, aws.ToString(data[3].MetricName))
	assert.Equal(t, 1.0, aws.ToFloat64(data[3].Value))

	assert.Equal(t, types.MetricModelsLoaded, aws.ToString(data[4].MetricName))
	assert.Equal(t, 9.0, aws.ToFloat64(data[4].Value))
	assert.Empty(t, data[4].Dimensions)

	for _, d := range data {
		assert.Equal(t, time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC), aws.ToTime(d.Timestamp))
	}
}

func TestCloudWatch_PublishErrorDropsBatch(t *testing.T) {
	client := &fakeCloudWatch{err: errors.New("throttled")}
	cw := newTestCloudWatch(client)

	cw.SetModelsLoaded(1)
	cw.Flush(context.Background())
	cw.Flush(context.Background())

	assert.Len(t, client.inputs, 1)
}

func TestNoop_SatisfiesRecorder(t *testing.T) {
	var r Recorder = Noop{}
	r.RecordRequest("GET", "/health", "200", time.Millisecond)
	r.SetModelsLoaded(1)
}
