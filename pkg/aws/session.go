package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
)

// SessionConfig selects the credentials and region used to talk to AWS.
// Empty fields fall back to the SDK default resolution chain.
type SessionConfig struct {
	Profile string
	Region  string
}

// AuthenticationError is returned when the profile cannot be loaded or no
// credentials can be resolved
type AuthenticationError struct {
	Profile string
	Err     error
}

func (e *AuthenticationError) Error() string {
	if e.Profile == "" {
		return fmt.Sprintf("error resolving AWS credentials: %v", e.Err)
	}
	return fmt.Sprintf("error resolving AWS credentials for profile %q: %v", e.Profile, e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// IsAuthenticationError reports whether err is or wraps an AuthenticationError
func IsAuthenticationError(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}

// loadOptions returns the config loader options for sc
func (sc SessionConfig) loadOptions() []func(*config.LoadOptions) error {
	opts := []func(*config.LoadOptions) error{
		// Only consulted when no region is found in flags, env or shared config
		config.WithEC2IMDSRegion(func(o *config.UseEC2IMDSRegion) {
			o.Client = imds.New(imds.Options{})
		}),
	}
	if sc.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(sc.Profile))
	}
	if sc.Region != "" {
		opts = append(opts, config.WithRegion(sc.Region))
	}
	return opts
}

// NewSession loads the AWS configuration for sc and eagerly resolves
// credentials so authentication problems surface before any resource call.
func NewSession(ctx context.Context, sc SessionConfig) (aws.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx, sc.loadOptions()...)
	if err != nil {
		return aws.Config{}, &AuthenticationError{Profile: sc.Profile, Err: err}
	}

	if cfg.Credentials == nil {
		return aws.Config{}, &AuthenticationError{Profile: sc.Profile, Err: errors.New("no credential provider configured")}
	}
	if _, err := cfg.Credentials.Retrieve(ctx); err != nil {
		return aws.Config{}, &AuthenticationError{Profile: sc.Profile, Err: err}
	}

	return cfg, nil
}
