package kinesis

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/config"
	awskinesis "github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/ava-labs/stream-producer/pkg/streamclient"
)

const (
	opPutRecord  = "PutRecord"
	opPutRecords = "PutRecords"
)

// API is the part of the Kinesis data plane the Client uses.
type API interface {
	PutRecord(ctx context.Context, params *awskinesis.PutRecordInput, optFns ...func(*awskinesis.Options)) (*awskinesis.PutRecordOutput, error)
	PutRecords(ctx context.Context, params *awskinesis.PutRecordsInput, optFns ...func(*awskinesis.Options)) (*awskinesis.PutRecordsOutput, error)
}

var _ API = (*awskinesis.Client)(nil)

// Client adapts the AWS SDK Kinesis client to streamclient.Client. It is safe
// for concurrent use when the underlying API is; *kinesis.Client is.
type Client struct {
	api API
	log *zap.SugaredLogger
}

var _ streamclient.Client = (*Client)(nil)

func New(api API, log *zap.SugaredLogger) *Client {
	return &Client{api: api, log: log}
}

// NewFromConfig builds a Client from the default AWS configuration chain.
func NewFromConfig(ctx context.Context, cfg Config, log *zap.SugaredLogger) (*Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.SDKMaxAttempts > 0 {
		loadOpts = append(loadOpts, config.WithRetryMaxAttempts(cfg.SDKMaxAttempts))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := awskinesis.NewFromConfig(awsCfg, func(o *awskinesis.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	log.Infow("kinesis client configured",
		"region", awsCfg.Region,
		"endpoint", cfg.Endpoint,
		"sdkMaxAttempts", cfg.SDKMaxAttempts,
	)
	return New(client, log), nil
}

func (c *Client) PutRecord(ctx context.Context, stream string, entry streamclient.Entry) (streamclient.Ack, error) {
	out, err := c.api.PutRecord(ctx, &awskinesis.PutRecordInput{
		StreamName:   aws.String(stream),
		PartitionKey: aws.String(entry.PartitionKey),
		Data:         entry.Data,
	})
	if err != nil {
		return streamclient.Ack{}, classify(opPutRecord, err)
	}

	return streamclient.Ack{
		ShardID:        aws.ToString(out.ShardId),
		SequenceNumber: aws.ToString(out.SequenceNumber),
	}, nil
}

func (c *Client) PutRecords(ctx context.Context, req *streamclient.PutRecordsRequest) (*streamclient.PutRecordsResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, streamclient.NewError(opPutRecords, err, false)
	}

	entries := make([]types.PutRecordsRequestEntry, len(req.Records))
	for i, e := range req.Records {
		entries[i] = types.PutRecordsRequestEntry{
			PartitionKey: aws.String(e.PartitionKey),
			Data:         e.Data,
		}
	}

	out, err := c.api.PutRecords(ctx, &awskinesis.PutRecordsInput{
		StreamName: aws.String(req.Stream),
		Records:    entries,
	})
	if err != nil {
		return nil, classify(opPutRecords, err)
	}

	results := make([]streamclient.Result, len(out.Records))
	for i, r := range out.Records {
		results[i] = streamclient.Result{
			ShardID:        aws.ToString(r.ShardId),
			SequenceNumber: aws.ToString(r.SequenceNumber),
			ErrorCode:      aws.ToString(r.ErrorCode),
			ErrorMessage:   aws.ToString(r.ErrorMessage),
		}
	}
	resp := streamclient.NewPutRecordsResponse(results)

	if out.FailedRecordCount != nil && int(*out.FailedRecordCount) != resp.FailedCount {
		c.log.Warnw("kinesis failed record count disagrees with entries",
			"stream", req.Stream,
			"reported", *out.FailedRecordCount,
			"counted", resp.FailedCount,
		)
	}
	return resp, nil
}

func classify(op string, err error) error {
	return streamclient.NewError(op, err, isRetryable(err))
}

// isRetryable reports whether a request-level error is transient: throttling,
// anything the SDK's standard retryer would retry, or a server-side fault.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var throughput *types.ProvisionedThroughputExceededException
	var kmsThrottle *types.KMSThrottlingException
	if errors.As(err, &throughput) || errors.As(err, &kmsThrottle) {
		return true
	}

	if retry.IsErrorThrottles(retry.DefaultThrottles).IsErrorThrottle(err) == aws.TrueTernary {
		return true
	}
	if retry.IsErrorRetryables(retry.DefaultRetryables).IsErrorRetryable(err) == aws.TrueTernary {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorFault() == smithy.FaultServer
	}
	return false
}
