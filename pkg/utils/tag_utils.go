package utils

import (
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// GetTagValue returns the value of a tag with the given key
func GetTagValue(tags []types.Tag, key string) string {
	for _, tag := range tags {
		if tag.Key != nil && *tag.Key == key {
			return SafeDeref(tag.Value)
		}
	}
	return ""
}

// GetTagsMap converts a slice of tags to a map.
// A nil or empty slice yields an empty, non-nil map.
func GetTagsMap(tags []types.Tag) map[string]string {
	result := make(map[string]string, len(tags))
	for _, tag := range tags {
		if tag.Key != nil {
			result[*tag.Key] = SafeDeref(tag.Value)
		}
	}
	return result
}

// TagFilter builds a DescribeX filter matching resources tagged key=value
func TagFilter(key, value string) types.Filter {
	name := "tag:" + key
	return types.Filter{
		Name:   &name,
		Values: []string{value},
	}
}
