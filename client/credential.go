package client

import (
	"context"
	"errors"
)

const credentialProbe = "Hi"

// ValidateCredential spends a one-token call on model to confirm the gateway's
// API key is accepted. An empty reply still proves the key; any other failure
// counts as a rejected key.
func ValidateCredential(ctx context.Context, gw Gateway, model string) (bool, error) {
	_, err := gw.Send(ctx, Request{
		Model:           model,
		MaxOutputTokens: 1,
		Messages: []Message{
			{Role: RoleUser, Content: []ContentPart{TextPart(credentialProbe)}},
		},
	})
	if err != nil && !errors.Is(err, ErrEmptyResponse) {
		return false, &CredentialError{Err: err}
	}
	return true, nil
}
