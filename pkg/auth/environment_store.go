package auth

import (
	"os"
	"time"
)

// EnvName is the name the environment credential is listed under
const EnvName = "env"

// EnvironmentStore reads a single credential from the environment. The
// legacy API_TOKEN and API_BASE_URL variables are honoured when the
// TWSCRAPER_ ones are unset.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment credential, which answers to "env" or
// to an empty name
func (e *EnvironmentStore) Retrieve(name string) (*Credential, error) {
	if name != "" && name != EnvName {
		return nil, ErrCredentialsNotFound
	}
	apiKey := firstEnv("TWSCRAPER_API_KEY", "API_TOKEN")
	if apiKey == "" {
		return nil, ErrCredentialsNotFound
	}
	name = EnvName

	return &Credential{
		Name:         name,
		APIKey:       apiKey,
		BaseURL:      firstEnv("TWSCRAPER_BASE_URL", "API_BASE_URL"),
		LastModified: time.Now(),
	}, nil
}

// List returns the environment credential if one is set
func (e *EnvironmentStore) List() ([]*Credential, error) {
	cred, err := e.Retrieve("")
	if err != nil {
		return []*Credential{}, nil
	}
	return []*Credential{cred}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if an environment credential is set
func (e *EnvironmentStore) Exists(name string) bool {
	return firstEnv("TWSCRAPER_API_KEY", "API_TOKEN") != ""
}
