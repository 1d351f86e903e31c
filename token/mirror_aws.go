package token

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/gravitational/trace"
)

// secretsAPI is the slice of the Secrets Manager client the mirror uses.
type secretsAPI interface {
	GetSecretValue(*secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error)
	PutSecretValue(*secretsmanager.PutSecretValueInput) (*secretsmanager.PutSecretValueOutput, error)
}

type mirrorSecrets struct {
	api      secretsAPI
	secretID string
}

var _ Mirror = (*mirrorSecrets)(nil)

// NewSecretsMirror returns a Mirror that keeps the credential in an AWS
// Secrets Manager secret. Intended for headless environments (CI jobs,
// shared workers) where a local file does not survive the host.
func NewSecretsMirror(secretID, region string) Mirror {
	sess := session.Must(session.NewSession(aws.NewConfig().WithRegion(region)))
	return &mirrorSecrets{
		api:      secretsmanager.New(sess),
		secretID: secretID,
	}
}

func (m *mirrorSecrets) Load() (Credential, bool, error) {
	out, err := m.api.GetSecretValue(&secretsmanager.GetSecretValueInput{
		SecretId: aws.String(m.secretID),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == secretsmanager.ErrCodeResourceNotFoundException {
			return "", false, nil
		}
		return "", false, trace.Wrap(err)
	}
	if out.SecretString == nil || *out.SecretString == "" {
		return "", false, nil
	}
	return Credential(*out.SecretString), true, nil
}

func (m *mirrorSecrets) Save(cred Credential) error {
	_, err := m.api.PutSecretValue(&secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(m.secretID),
		SecretString: aws.String(string(cred)),
	})
	return trace.Wrap(err)
}

// Clear writes an empty version instead of deleting the secret: Secrets
// Manager deletions are scheduled, not immediate, and the slot must read
// as absent right away.
func (m *mirrorSecrets) Clear() error {
	_, err := m.api.PutSecretValue(&secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(m.secretID),
		SecretString: aws.String(""),
	})
	return trace.Wrap(err)
}
