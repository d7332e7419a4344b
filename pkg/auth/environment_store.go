package auth

import (
	"os"
	"time"
)

// TokenEnvVar holds the API token for the default profile
const TokenEnvVar = "YTSHORTS_API_TOKEN"

// EnvironmentStore implements TokenStore on top of YTSHORTS_API_TOKEN.
// It is read-only and only knows the default profile.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based token store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(token *Token) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment token for the default profile
func (e *EnvironmentStore) Retrieve(profile string) (*Token, error) {
	value := os.Getenv(TokenEnvVar)
	if value == "" || (profile != "" && profile != DefaultProfile) {
		return nil, ErrTokenNotFound
	}

	return &Token{
		Profile:      DefaultProfile,
		Endpoint:     os.Getenv("YTSHORTS_ENDPOINT"),
		Value:        value,
		LastModified: time.Time{},
	}, nil
}

// List returns the environment token if it is set
func (e *EnvironmentStore) List() ([]*Token, error) {
	token, err := e.Retrieve(DefaultProfile)
	if err != nil {
		return []*Token{}, nil
	}
	return []*Token{token}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(profile string) error {
	return ErrStoreUnavailable
}

// Exists checks if the environment token is set
func (e *EnvironmentStore) Exists(profile string) bool {
	_, err := e.Retrieve(profile)
	return err == nil
}
