package formatter

import (
	"fmt"
	"strings"

	"github.com/younsl/shotty/internal/models"
	"github.com/younsl/shotty/pkg/utils"
)

// fieldSeparator joins the columns of every listing line
const fieldSeparator = ", "

// VolumeLine formats a volume as
// "vol-id, instance-id, state, <size>GiB, Encrypted|Not Encrypted"
func VolumeLine(v models.VolumeInfo) string {
	return strings.Join([]string{
		v.VolumeID,
		v.InstanceID,
		v.State,
		fmt.Sprintf("%dGiB", v.Size),
		encryptionLabel(v.Encrypted),
	}, fieldSeparator)
}

// InstanceLine formats an instance as
// "instance-id, type, az, state, public-dns, project"
func InstanceLine(i models.InstanceInfo) string {
	return strings.Join([]string{
		i.InstanceID,
		i.InstanceType,
		i.AvailabilityZone,
		i.State,
		i.PublicDNSName,
		i.Project(),
	}, fieldSeparator)
}

// SnapshotLine formats a snapshot of a volume attached to instanceID as
// "snap-id, vol-id, instance-id, state, progress, start time"
func SnapshotLine(s models.SnapshotInfo, volumeID, instanceID string) string {
	return strings.Join([]string{
		s.SnapshotID,
		volumeID,
		instanceID,
		s.State,
		s.Progress,
		utils.FormatCTime(s.StartTime),
	}, fieldSeparator)
}

func encryptionLabel(encrypted bool) string {
	if encrypted {
		return "Encrypted"
	}
	return "Not Encrypted"
}
