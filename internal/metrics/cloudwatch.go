package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"raincheck/internal/types"
)

const (
	// cloudWatchBatchSize triggers a synchronous flush once reached.
	cloudWatchBatchSize = 20
	cloudWatchTimeout   = 5 * time.Second
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatch buffers datums and publishes them with PutMetricData. Record
// calls never fail; publish errors are logged and the batch is dropped.
//
// Callers must Flush (or Close) before the process is frozen or exits, e.g.
// after every Lambda invocation.
type CloudWatch struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	pending []cwtypes.MetricDatum
}

// NewCloudWatch publishes into namespace.
func NewCloudWatch(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatch {
	return &CloudWatch{
		client:    client,
		namespace: namespace,
		logger:    logger,
		now:       time.Now,
	}
}

// RecordRequest implements core.MetricsCollector.
func (c *CloudWatch) RecordRequest(method, endpoint, status string, duration time.Duration) {
	dims := []cwtypes.Dimension{
		dim(types.DimMethod, method),
		dim(types.DimEndpoint, endpoint),
		dim(types.DimStatus, status),
	}
	c.add(
		c.datum(types.MetricAPILatency, float64(duration.Milliseconds()), cwtypes.StandardUnitMilliseconds, dims),
		c.datum(types.MetricAPIRequestCount, 1, cwtypes.StandardUnitCount, dims),
	)
}

// RecordPrediction implements prediction.MetricsRecorder. The datum value
// is the probability so CloudWatch statistics give its distribution.
func (c *CloudWatch) RecordPrediction(stadiumID string, confidence types.Confidence, probability float64) {
	c.add(c.datum(types.MetricPrediction, probability, cwtypes.StandardUnitNone, []cwtypes.Dimension{
		dim(types.DimStadium, stadiumID),
		dim(types.DimConfidence, string(confidence)),
	}))
}

// RecordWeatherFetch implements weather.FetchRecorder. Failures are also
// counted under ExternalAPIFailure for alarming.
func (c *CloudWatch) RecordWeatherFetch(source types.DataSource, ok bool) {
	dims := []cwtypes.Dimension{
		dim(types.DimSource, string(source)),
		dim(types.DimOutcome, fetchOutcome(ok)),
	}
	data := []cwtypes.MetricDatum{c.datum(types.MetricWeatherFetch, 1, cwtypes.StandardUnitCount, dims)}
	if !ok {
		data = append(data, c.datum(types.MetricExternalAPIFailure, 1, cwtypes.StandardUnitCount,
			[]cwtypes.Dimension{dim(types.DimSource, string(source))}))
	}
	c.add(data...)
}

// RecordWeatherCache implements weather.CacheRecorder; hits are 1, misses 0.
func (c *CloudWatch) RecordWeatherCache(source types.DataSource, hit bool) {
	var v float64
	if hit {
		v = 1
	}
	c.add(c.datum(types.MetricWeatherCacheHit, v, cwtypes.StandardUnitCount,
		[]cwtypes.Dimension{dim(types.DimSource, string(source))}))
}

// SetModelsLoaded publishes the registry size.
func (c *CloudWatch) SetModelsLoaded(n int) {
	c.add(c.datum(types.MetricModelsLoaded, float64(n), cwtypes.StandardUnitCount, nil))
}

// Flush publishes every buffered datum.
func (c *CloudWatch) Flush(ctx context.Context) {
	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()

	c.publish(ctx, batch)
}

// Close flushes with a bounded timeout so it can sit in the server's closers.
func (c *CloudWatch) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), cloudWatchTimeout)
	defer cancel()
	c.Flush(ctx)
	return nil
}

func (c *CloudWatch) add(data ...cwtypes.MetricDatum) {
	c.mu.Lock()
	c.pending = append(c.pending, data...)
	var batch []cwtypes.MetricDatum
	if len(c.pending) >= cloudWatchBatchSize {
		batch = c.pending
		c.pending = nil
	}
	c.mu.Unlock()

	if batch != nil {
		ctx, cancel := context.WithTimeout(context.Background(), cloudWatchTimeout)
		defer cancel()
		c.publish(ctx, batch)
	}
}

func (c *CloudWatch) publish(ctx context.Context, batch []cwtypes.MetricDatum) {
	if len(batch) == 0 {
		return
	}
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(c.namespace),
		MetricData: batch,
	}
	if _, err := c.client.PutMetricData(ctx, input); err != nil {
		c.logger.Error("failed to publish metrics",
			"error", err.Error(),
			"namespace", c.namespace,
			"datums", len(batch),
		)
	}
}

func (c *CloudWatch) datum(name string, value float64, unit cwtypes.StandardUnit, dims []cwtypes.Dimension) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(c.now()),
		Dimensions: dims,
	}
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}
