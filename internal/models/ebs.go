package models

import "time"

// VolumeInfo represents an EBS volume attached to an instance
type VolumeInfo struct {
	VolumeID   string
	InstanceID string
	State      string
	Size       int // GiB
	Encrypted  bool
}

// SnapshotInfo represents an EBS snapshot of a volume
type SnapshotInfo struct {
	SnapshotID string
	VolumeID   string
	State      string // pending, completed, error
	Progress   string
	StartTime  time.Time
}

// Snapshot states reported by EC2
const (
	SnapshotStatePending   = "pending"
	SnapshotStateCompleted = "completed"
)
