package provider

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// ec2API is the slice of the EC2 client the integration uses. Kept small
// so tests can fake it.
type ec2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	StartInstances(ctx context.Context, params *ec2.StartInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error)
	StopInstances(ctx context.Context, params *ec2.StopInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error)
}

// AWSClient implements InstanceAPI against EC2.
type AWSClient struct {
	api ec2API
}

// NewAWSClient builds an EC2-backed client. Static credentials are used
// when provided, otherwise the default chain (env, shared config, IMDS).
func NewAWSClient(ctx context.Context, region, accessKey, secretKey string) (*AWSClient, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &AWSClient{api: ec2.NewFromConfig(cfg)}, nil
}

// CountInstances counts non-terminated instances tagged with the cluster
// name.
func (c *AWSClient) CountInstances(ctx context.Context, cluster string) (int, error) {
	out, err := c.describe(ctx, cluster)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, r := range out.Reservations {
		count += len(r.Instances)
	}
	return count, nil
}

// SetPower starts or stops every tagged instance.
func (c *AWSClient) SetPower(ctx context.Context, cluster string, on bool) error {
	out, err := c.describe(ctx, cluster)
	if err != nil {
		return err
	}
	var ids []string
	for _, r := range out.Reservations {
		for _, inst := range r.Instances {
			if inst.InstanceId != nil {
				ids = append(ids, *inst.InstanceId)
			}
		}
	}
	if len(ids) == 0 {
		return fmt.Errorf("no instances tagged %s=%s", ClusterTag, cluster)
	}

	if on {
		_, err = c.api.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: ids})
	} else {
		_, err = c.api.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: ids})
	}
	if err != nil {
		return fmt.Errorf("failed to change instance power state: %w", err)
	}
	return nil
}

func (c *AWSClient) describe(ctx context.Context, cluster string) (*ec2.DescribeInstancesOutput, error) {
	out, err := c.api.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		Filters: []types.Filter{
			{Name: aws.String("tag:" + ClusterTag), Values: []string{cluster}},
			{Name: aws.String("instance-state-name"), Values: []string{
				"pending", "running", "stopping", "stopped",
			}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe instances: %w", err)
	}
	return out, nil
}
