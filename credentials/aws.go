// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package credentials

import (
	"context"

	awscreds "github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/pkg/errors"
)

// FromAWS adapts credentials from the AWS SDK for Go into a Provider,
// making the SDK's credential sources (environment, shared credentials
// file, and so on) available to the client. The SDK credentials do
// their own caching and expiry.
func FromAWS(c *awscreds.Credentials) Provider {
	if c == nil {
		panic("s3x/credentials: nil AWS credentials")
	}
	return awsProvider{c}
}

// DefaultAWSChain returns a Provider reading the AWS_ACCESS_KEY_ID,
// AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN environment variables,
// then the shared credentials file for the given profile (or the
// default profile if profile is empty).
func DefaultAWSChain(profile string) Provider {
	return FromAWS(awscreds.NewChainCredentials([]awscreds.Provider{
		&awscreds.EnvProvider{},
		&awscreds.SharedCredentialsProvider{Profile: profile},
	}))
}

type awsProvider struct {
	c *awscreds.Credentials
}

func (p awsProvider) Retrieve(ctx context.Context) (*Credentials, error) {
	v, err := p.c.GetWithContext(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "s3x/credentials: AWS credential chain")
	}
	return &Credentials{
		AccessKeyID:     v.AccessKeyID,
		SecretAccessKey: v.SecretAccessKey,
		SessionToken:    v.SessionToken,
	}, nil
}
