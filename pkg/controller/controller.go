// Package controller runs shotty commands against a ResourceClient and
// reports progress as plain text lines.
package controller

import (
	"context"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/inconshreveable/log15"
	"github.com/younsl/shotty/internal/models"
	"github.com/younsl/shotty/pkg/aws"
	"github.com/younsl/shotty/pkg/formatter"
)

// SnapshotDescription is attached to every snapshot created by shotty
const SnapshotDescription = "Created by snappy"

// ResourceClient is the cloud API used by the Controller.
// *aws.EC2Client implements it.
type ResourceClient interface {
	Instances(ctx context.Context, project string) iter.Seq2[models.InstanceInfo, error]
	Volumes(ctx context.Context, instanceID string) iter.Seq2[models.VolumeInfo, error]
	Snapshots(ctx context.Context, volumeID string) iter.Seq2[models.SnapshotInfo, error]

	StopInstance(ctx context.Context, instanceID string) error
	StartInstance(ctx context.Context, instanceID string) error
	WaitUntilStopped(ctx context.Context, instanceID string) error
	WaitUntilRunning(ctx context.Context, instanceID string) error
	CreateSnapshot(ctx context.Context, volumeID, description string) (string, error)
}

var _ ResourceClient = (*aws.EC2Client)(nil)

// Indicator shows activity while the controller blocks on a waiter
type Indicator interface {
	Start(message string)
	Stop()
}

type nopIndicator struct{}

func (nopIndicator) Start(string) {}
func (nopIndicator) Stop()        {}

// Controller executes the shotty operations one resource at a time
type Controller struct {
	client    ResourceClient
	project   string
	out       io.Writer
	log       log15.Logger
	indicator Indicator
}

// Option configures a Controller
type Option func(*Controller)

// WithOutput sets where progress lines are written. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(c *Controller) {
		c.out = w
	}
}

// WithLogger sets the diagnostic logger. Defaults to discarding.
func WithLogger(logger log15.Logger) Option {
	return func(c *Controller) {
		c.log = logger
	}
}

// WithIndicator sets the activity indicator used during waits
func WithIndicator(i Indicator) Option {
	return func(c *Controller) {
		c.indicator = i
	}
}

// New creates a Controller operating on the instances of project,
// or on every instance if project is empty
func New(client ResourceClient, project string, opts ...Option) *Controller {
	c := &Controller{
		client:    client,
		project:   project,
		out:       os.Stdout,
		indicator: nopIndicator{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = log15.New()
		c.log.SetHandler(log15.DiscardHandler())
	}
	c.log = c.log.New("project", c.project)
	return c
}

func (c *Controller) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format+"\n", args...)
}

// eachInstance calls fn for every resolved instance, stopping at the first
// enumeration error or error returned by fn
func (c *Controller) eachInstance(ctx context.Context, fn func(models.InstanceInfo) error) error {
	for instance, err := range c.client.Instances(ctx, c.project) {
		if err != nil {
			return err
		}
		if err := fn(instance); err != nil {
			return err
		}
	}
	return nil
}

// eachVolume calls fn for every volume attached to instance
func (c *Controller) eachVolume(ctx context.Context, instance models.InstanceInfo, fn func(models.VolumeInfo) error) error {
	for volume, err := range c.client.Volumes(ctx, instance.InstanceID) {
		if err != nil {
			return err
		}
		if err := fn(volume); err != nil {
			return err
		}
	}
	return nil
}

// ListVolumes prints every volume attached to the resolved instances
func (c *Controller) ListVolumes(ctx context.Context) error {
	return c.eachInstance(ctx, func(instance models.InstanceInfo) error {
		return c.eachVolume(ctx, instance, func(volume models.VolumeInfo) error {
			c.printf("%s", formatter.VolumeLine(volume))
			return nil
		})
	})
}

// ListInstances prints the resolved instances
func (c *Controller) ListInstances(ctx context.Context) error {
	return c.eachInstance(ctx, func(instance models.InstanceInfo) error {
		c.printf("%s", formatter.InstanceLine(instance))
		return nil
	})
}

// StopInstances requests a stop of every resolved instance. API errors are
// reported per instance and do not abort the remaining instances.
func (c *Controller) StopInstances(ctx context.Context) error {
	return c.eachInstance(ctx, func(instance models.InstanceInfo) error {
		c.printf("Stopping %s...", instance.InstanceID)
		if err := c.client.StopInstance(ctx, instance.InstanceID); err != nil {
			if !aws.IsClientError(err) {
				return err
			}
			c.log.Warn("stop request rejected", "instance", instance.InstanceID, "error", err)
			c.printf("Could not stop %s -> %v", instance.InstanceID, err)
		}
		return nil
	})
}

// StartInstances requests a start of every resolved instance. API errors are
// reported per instance and do not abort the remaining instances.
func (c *Controller) StartInstances(ctx context.Context) error {
	return c.eachInstance(ctx, func(instance models.InstanceInfo) error {
		c.printf("Starting %s...", instance.InstanceID)
		if err := c.client.StartInstance(ctx, instance.InstanceID); err != nil {
			if !aws.IsClientError(err) {
				return err
			}
			c.log.Warn("start request rejected", "instance", instance.InstanceID, "error", err)
			c.printf("Could not start %s -> %v", instance.InstanceID, err)
		}
		return nil
	})
}

// WaitUntilStopped blocks until each resolved instance is stopped, in turn
func (c *Controller) WaitUntilStopped(ctx context.Context) error {
	return c.eachInstance(ctx, func(instance models.InstanceInfo) error {
		c.printf("Waiting on %s...", instance.InstanceID)
		return c.wait(ctx, instance.InstanceID, "stopped", c.client.WaitUntilStopped)
	})
}

// WaitUntilRunning blocks until each resolved instance is running, in turn
func (c *Controller) WaitUntilRunning(ctx context.Context) error {
	return c.eachInstance(ctx, func(instance models.InstanceInfo) error {
		c.printf("Waiting on %s...", instance.InstanceID)
		return c.wait(ctx, instance.InstanceID, "running", c.client.WaitUntilRunning)
	})
}

func (c *Controller) wait(ctx context.Context, instanceID, state string, waitFn func(context.Context, string) error) error {
	c.indicator.Start(fmt.Sprintf(" Waiting for %s to be %s", instanceID, state))
	defer c.indicator.Stop()

	return waitFn(ctx, instanceID)
}

// HasPendingSnapshot reports whether the most recent snapshot of volumeID
// is still pending. Older snapshots are not inspected.
func (c *Controller) HasPendingSnapshot(ctx context.Context, volumeID string) (bool, error) {
	for snapshot, err := range c.client.Snapshots(ctx, volumeID) {
		if err != nil {
			return false, err
		}
		c.log.Debug("latest snapshot", "volume", volumeID, "snapshot", snapshot.SnapshotID,
			"state", snapshot.State, "started", humanize.Time(snapshot.StartTime))
		return snapshot.State == models.SnapshotStatePending, nil
	}
	return false, nil
}

// CreateSnapshots stops each resolved instance, snapshots its volumes and
// starts it again. Any failure aborts the run and leaves the current
// instance in whatever state it reached.
func (c *Controller) CreateSnapshots(ctx context.Context) error {
	var requested int
	err := c.eachInstance(ctx, func(instance models.InstanceInfo) error {
		c.printf("Stopping %s", instance.InstanceID)
		if err := c.client.StopInstance(ctx, instance.InstanceID); err != nil {
			return fmt.Errorf("error stopping %s: %w", instance.InstanceID, err)
		}
		if err := c.wait(ctx, instance.InstanceID, "stopped", c.client.WaitUntilStopped); err != nil {
			return err
		}

		err := c.eachVolume(ctx, instance, func(volume models.VolumeInfo) error {
			pending, err := c.HasPendingSnapshot(ctx, volume.VolumeID)
			if err != nil {
				return err
			}
			if pending {
				c.printf("Skipping %s, snapshot already in progress", volume.VolumeID)
				return nil
			}

			c.printf("Creating snapshot of %s", volume.VolumeID)
			snapshotID, err := c.client.CreateSnapshot(ctx, volume.VolumeID, SnapshotDescription)
			if err != nil {
				return err
			}
			requested++
			c.log.Info("requested snapshot", "instance", instance.InstanceID, "volume", volume.VolumeID,
				"snapshot", snapshotID, "size", humanize.IBytes(uint64(volume.Size)<<30))
			return nil
		})
		if err != nil {
			return err
		}

		c.printf("Starting %s", instance.InstanceID)
		if err := c.client.StartInstance(ctx, instance.InstanceID); err != nil {
			return fmt.Errorf("error starting %s: %w", instance.InstanceID, err)
		}
		return c.wait(ctx, instance.InstanceID, "running", c.client.WaitUntilRunning)
	})
	if err != nil {
		return err
	}

	c.log.Info("snapshot run finished", "snapshots", humanize.Comma(int64(requested)))
	c.printf("Job's done!")
	return nil
}

// ListSnapshots prints the snapshots of every volume of the resolved
// instances, most recent first. Unless listAll is set, a volume's listing
// ends after its first completed snapshot.
func (c *Controller) ListSnapshots(ctx context.Context, listAll bool) error {
	return c.eachInstance(ctx, func(instance models.InstanceInfo) error {
		return c.eachVolume(ctx, instance, func(volume models.VolumeInfo) error {
			for snapshot, err := range c.client.Snapshots(ctx, volume.VolumeID) {
				if err != nil {
					return err
				}
				c.printf("%s", formatter.SnapshotLine(snapshot, volume.VolumeID, instance.InstanceID))

				if snapshot.State == models.SnapshotStateCompleted && !listAll {
					break
				}
			}
			return nil
		})
	})
}
