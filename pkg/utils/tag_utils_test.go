package utils

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
)

func TestGetTagsMap(t *testing.T) {
	tests := []struct {
		name string
		tags []types.Tag
		want map[string]string
	}{
		{
			name: "nil tags",
			tags: nil,
			want: map[string]string{},
		},
		{
			name: "project tag",
			tags: []types.Tag{{Key: aws.String("PROJECT"), Value: aws.String("x")}},
			want: map[string]string{"PROJECT": "x"},
		},
		{
			name: "missing value and missing key",
			tags: []types.Tag{
				{Key: aws.String("Name")},
				{Value: aws.String("orphan")},
			},
			want: map[string]string{"Name": ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetTagsMap(tt.tags)
			assert.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetTagValue(t *testing.T) {
	tags := []types.Tag{
		{Key: aws.String("Name"), Value: aws.String("web")},
		{Key: aws.String("PROJECT"), Value: aws.String("demo")},
	}

	assert.Equal(t, "demo", GetTagValue(tags, "PROJECT"))
	assert.Equal(t, "", GetTagValue(tags, "project"), "tag keys are case-sensitive")
	assert.Equal(t, "", GetTagValue(nil, "PROJECT"))
}

func TestTagFilter(t *testing.T) {
	f := TagFilter("PROJECT", "demo")

	assert.Equal(t, "tag:PROJECT", aws.ToString(f.Name))
	assert.Equal(t, []string{"demo"}, f.Values)
}
