// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-keyset.
//
// go-keyset is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package kms

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awskms "github.com/aws/aws-sdk-go-v2/service/kms"

	"github.com/jeremyhahn/go-keyset/pkg/logging"
	"github.com/jeremyhahn/go-keyset/pkg/types"
)

// AWSScheme is the URI scheme served by the AWS KMS client. Key URIs
// look like "aws-kms://arn:aws:kms:us-east-1:123456789012:key/…".
const AWSScheme = "aws-kms://"

// awsEncryptionContextKey carries the associated data through KMS's
// encryption context, which the service authenticates.
const awsEncryptionContextKey = "associated_data"

// AWSClient serves AEADs backed by AWS KMS. Key material never leaves
// the service.
type AWSClient struct {
	uriPrefix string
	kms       *awskms.Client
	log       *logging.Logger
}

var _ Client = (*AWSClient)(nil)

// NewAWSClient loads the default AWS credential chain and serves all
// key URIs under uriPrefix.
func NewAWSClient(ctx context.Context, uriPrefix string) (*AWSClient, error) {
	if err := validatePrefix(uriPrefix, AWSScheme); err != nil {
		return nil, err
	}
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("kms: aws config: %w", err)
	}
	return &AWSClient{
		uriPrefix: uriPrefix,
		kms:       awskms.NewFromConfig(cfg),
		log:       logging.DefaultLogger(),
	}, nil
}

// NewAWSClientWithKMS uses a preconfigured KMS client. Intended for
// custom endpoints and tests.
func NewAWSClientWithKMS(uriPrefix string, kmsClient *awskms.Client) (*AWSClient, error) {
	if err := validatePrefix(uriPrefix, AWSScheme); err != nil {
		return nil, err
	}
	return &AWSClient{
		uriPrefix: uriPrefix,
		kms:       kmsClient,
		log:       logging.DefaultLogger(),
	}, nil
}

// SetLogger replaces the client's logger. KMS calls themselves are
// never logged; only client setup and key resolution are.
func (c *AWSClient) SetLogger(l *logging.Logger) {
	if l != nil {
		c.log = l
	}
}

func (c *AWSClient) Supports(keyURI string) bool {
	return strings.HasPrefix(strings.ToLower(keyURI), strings.ToLower(c.uriPrefix))
}

func (c *AWSClient) AEAD(keyURI string) (types.AEAD, error) {
	if !c.Supports(keyURI) {
		return nil, fmt.Errorf("%w: %q not under %q", ErrInvalidKeyURI, keyURI, c.uriPrefix)
	}
	keyARN := keyURI[len(AWSScheme):]
	if keyARN == "" {
		return nil, fmt.Errorf("%w: empty key ARN", ErrInvalidKeyURI)
	}
	c.log.Debug("resolved kms key", "arn", keyARN)
	return &awsAEAD{kms: c.kms, keyARN: keyARN}, nil
}

type awsAEAD struct {
	kms    *awskms.Client
	keyARN string
}

var _ types.AEAD = (*awsAEAD)(nil)

func (a *awsAEAD) Encrypt(plaintext, associatedData []byte) ([]byte, error) {
	input := &awskms.EncryptInput{
		KeyId:             aws.String(a.keyARN),
		Plaintext:         plaintext,
		EncryptionContext: encryptionContext(associatedData),
	}
	out, err := a.kms.Encrypt(context.Background(), input)
	if err != nil {
		return nil, fmt.Errorf("kms: aws encrypt: %w", err)
	}
	if len(out.CiphertextBlob) == 0 {
		return nil, fmt.Errorf("%w: empty ciphertext", ErrInvalidResponse)
	}
	return out.CiphertextBlob, nil
}

func (a *awsAEAD) Decrypt(ciphertext, associatedData []byte) ([]byte, error) {
	input := &awskms.DecryptInput{
		KeyId:             aws.String(a.keyARN),
		CiphertextBlob:    ciphertext,
		EncryptionContext: encryptionContext(associatedData),
	}
	out, err := a.kms.Decrypt(context.Background(), input)
	if err != nil {
		return nil, types.ErrDecryptionFailed
	}
	return out.Plaintext, nil
}

func encryptionContext(associatedData []byte) map[string]string {
	if len(associatedData) == 0 {
		return nil
	}
	return map[string]string{awsEncryptionContextKey: hex.EncodeToString(associatedData)}
}
