package models

// NoProject is shown for instances without a PROJECT tag
const NoProject = "<no project>"

// ProjectTagKey is the tag key used to group instances into projects
const ProjectTagKey = "PROJECT"

// InstanceInfo represents EC2 instance information
type InstanceInfo struct {
	InstanceID       string
	InstanceType     string
	AvailabilityZone string
	State            string // pending, running, stopping, stopped, shutting-down, terminated
	PublicDNSName    string
	Tags             map[string]string
}

// Project returns the PROJECT tag value, or NoProject if the instance has none
func (i InstanceInfo) Project() string {
	if project, ok := i.Tags[ProjectTagKey]; ok {
		return project
	}
	return NoProject
}
