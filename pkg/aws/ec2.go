package aws

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/inconshreveable/log15"
	"github.com/younsl/shotty/internal/models"
	"github.com/younsl/shotty/pkg/utils"
)

// DefaultMaxWait bounds a single instance state waiter: 40 attempts at 15s
const DefaultMaxWait = 10 * time.Minute

// EC2API is the subset of the EC2 API used by EC2Client.
// *ec2.Client satisfies it; tests substitute a fake.
type EC2API interface {
	ec2.DescribeInstancesAPIClient
	ec2.DescribeVolumesAPIClient
	ec2.DescribeSnapshotsAPIClient

	StopInstances(ctx context.Context, params *ec2.StopInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error)
	StartInstances(ctx context.Context, params *ec2.StartInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error)
	CreateSnapshot(ctx context.Context, params *ec2.CreateSnapshotInput, optFns ...func(*ec2.Options)) (*ec2.CreateSnapshotOutput, error)
}

var _ EC2API = (*ec2.Client)(nil)

// EC2Client struct for EC2 client
type EC2Client struct {
	client  EC2API
	region  string
	maxWait time.Duration
	log     log15.Logger
}

// NewEC2Client creates a new EC2Client from the session described by sc
func NewEC2Client(ctx context.Context, sc SessionConfig, logger log15.Logger) (*EC2Client, error) {
	cfg, err := NewSession(ctx, sc)
	if err != nil {
		return nil, err
	}

	c := NewEC2ClientFromAPI(ec2.NewFromConfig(cfg), logger)
	c.region = cfg.Region
	return c, nil
}

// NewEC2ClientFromAPI wraps an existing EC2 API implementation
func NewEC2ClientFromAPI(api EC2API, logger log15.Logger) *EC2Client {
	if logger == nil {
		logger = log15.New()
		logger.SetHandler(log15.DiscardHandler())
	}
	return &EC2Client{
		client:  api,
		maxWait: DefaultMaxWait,
		log:     logger,
	}
}

// Region returns the region the client was configured for
func (c *EC2Client) Region() string {
	return c.region
}

// IsClientError reports whether err is an error response from the EC2 API,
// such as IncorrectInstanceState or UnauthorizedOperation
func IsClientError(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr)
}

// Instances returns a lazy sequence of instances. If project is non-empty only
// instances tagged PROJECT=project are returned, otherwise every instance in
// the region regardless of state. Enumeration stops at the first error.
func (c *EC2Client) Instances(ctx context.Context, project string) iter.Seq2[models.InstanceInfo, error] {
	return func(yield func(models.InstanceInfo, error) bool) {
		input := &ec2.DescribeInstancesInput{}
		if project != "" {
			input.Filters = []types.Filter{utils.TagFilter(models.ProjectTagKey, project)}
		}

		paginator := ec2.NewDescribeInstancesPaginator(c.client, input)
		for page := 1; paginator.HasMorePages(); page++ {
			output, err := paginator.NextPage(ctx)
			if err != nil {
				yield(models.InstanceInfo{}, fmt.Errorf("error querying EC2 instances: %w", err))
				return
			}
			c.log.Debug("handling instance results", "page", page, "reservations", len(output.Reservations))

			for _, reservation := range output.Reservations {
				for _, instance := range reservation.Instances {
					if !yield(toInstanceInfo(instance), nil) {
						return
					}
				}
			}
		}
	}
}

// Volumes returns a lazy sequence of the EBS volumes attached to instanceID
func (c *EC2Client) Volumes(ctx context.Context, instanceID string) iter.Seq2[models.VolumeInfo, error] {
	return func(yield func(models.VolumeInfo, error) bool) {
		input := &ec2.DescribeVolumesInput{
			Filters: []types.Filter{{
				Name:   aws.String("attachment.instance-id"),
				Values: []string{instanceID},
			}},
		}

		paginator := ec2.NewDescribeVolumesPaginator(c.client, input)
		for paginator.HasMorePages() {
			output, err := paginator.NextPage(ctx)
			if err != nil {
				yield(models.VolumeInfo{}, fmt.Errorf("error querying EBS volumes of %s: %w", instanceID, err))
				return
			}

			for _, volume := range output.Volumes {
				if !yield(toVolumeInfo(volume, instanceID), nil) {
					return
				}
			}
		}
	}
}

// Snapshots returns the snapshots of volumeID, most recent first.
// EC2 does not guarantee any order, so all pages are read and sorted by start
// time before the first snapshot is yielded.
func (c *EC2Client) Snapshots(ctx context.Context, volumeID string) iter.Seq2[models.SnapshotInfo, error] {
	return func(yield func(models.SnapshotInfo, error) bool) {
		input := &ec2.DescribeSnapshotsInput{
			Filters: []types.Filter{{
				Name:   aws.String("volume-id"),
				Values: []string{volumeID},
			}},
		}

		var snapshots []models.SnapshotInfo
		paginator := ec2.NewDescribeSnapshotsPaginator(c.client, input)
		for paginator.HasMorePages() {
			output, err := paginator.NextPage(ctx)
			if err != nil {
				yield(models.SnapshotInfo{}, fmt.Errorf("error querying snapshots of %s: %w", volumeID, err))
				return
			}
			for _, snapshot := range output.Snapshots {
				snapshots = append(snapshots, toSnapshotInfo(snapshot))
			}
		}
		c.log.Debug("described snapshots", "volume", volumeID, "count", len(snapshots))

		slices.SortStableFunc(snapshots, func(a, b models.SnapshotInfo) int {
			return b.StartTime.Compare(a.StartTime)
		})

		for _, snapshot := range snapshots {
			if !yield(snapshot, nil) {
				return
			}
		}
	}
}

// StopInstance requests a stop of instanceID without waiting for it
func (c *EC2Client) StopInstance(ctx context.Context, instanceID string) error {
	_, err := c.client.StopInstances(ctx, &ec2.StopInstancesInput{
		InstanceIds: []string{instanceID},
	})
	return err
}

// StartInstance requests a start of instanceID without waiting for it
func (c *EC2Client) StartInstance(ctx context.Context, instanceID string) error {
	_, err := c.client.StartInstances(ctx, &ec2.StartInstancesInput{
		InstanceIds: []string{instanceID},
	})
	return err
}

// WaitUntilStopped blocks until instanceID reports the stopped state
func (c *EC2Client) WaitUntilStopped(ctx context.Context, instanceID string) error {
	waiter := ec2.NewInstanceStoppedWaiter(c.client)
	err := waiter.Wait(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{instanceID}}, c.maxWait)
	if err != nil {
		return fmt.Errorf("error waiting for %s to stop: %w", instanceID, err)
	}
	return nil
}

// WaitUntilRunning blocks until instanceID reports the running state
func (c *EC2Client) WaitUntilRunning(ctx context.Context, instanceID string) error {
	waiter := ec2.NewInstanceRunningWaiter(c.client)
	err := waiter.Wait(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{instanceID}}, c.maxWait)
	if err != nil {
		return fmt.Errorf("error waiting for %s to start: %w", instanceID, err)
	}
	return nil
}

// CreateSnapshot requests a snapshot of volumeID and returns its ID.
// It does not wait for the snapshot to complete.
func (c *EC2Client) CreateSnapshot(ctx context.Context, volumeID, description string) (string, error) {
	output, err := c.client.CreateSnapshot(ctx, &ec2.CreateSnapshotInput{
		VolumeId:    aws.String(volumeID),
		Description: aws.String(description),
	})
	if err != nil {
		return "", fmt.Errorf("error creating snapshot of %s: %w", volumeID, err)
	}
	return aws.ToString(output.SnapshotId), nil
}

func toInstanceInfo(instance types.Instance) models.InstanceInfo {
	info := models.InstanceInfo{
		InstanceID:    aws.ToString(instance.InstanceId),
		InstanceType:  string(instance.InstanceType),
		PublicDNSName: aws.ToString(instance.PublicDnsName),
		Tags:          utils.GetTagsMap(instance.Tags),
	}
	if instance.Placement != nil {
		info.AvailabilityZone = aws.ToString(instance.Placement.AvailabilityZone)
	}
	if instance.State != nil {
		info.State = string(instance.State.Name)
	}
	return info
}

func toVolumeInfo(volume types.Volume, instanceID string) models.VolumeInfo {
	return models.VolumeInfo{
		VolumeID:   aws.ToString(volume.VolumeId),
		InstanceID: instanceID,
		State:      string(volume.State),
		Size:       int(aws.ToInt32(volume.Size)),
		Encrypted:  aws.ToBool(volume.Encrypted),
	}
}

func toSnapshotInfo(snapshot types.Snapshot) models.SnapshotInfo {
	return models.SnapshotInfo{
		SnapshotID: aws.ToString(snapshot.SnapshotId),
		VolumeID:   aws.ToString(snapshot.VolumeId),
		State:      string(snapshot.State),
		Progress:   aws.ToString(snapshot.Progress),
		StartTime:  aws.ToTime(snapshot.StartTime),
	}
}
