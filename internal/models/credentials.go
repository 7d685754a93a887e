package models

import (
	"encoding/json"
	"fmt"
)

// CredentialKeys are the keys every persisted credential document must carry
var CredentialKeys = []string{
	"client_id",
	"client_secret",
	"access_token",
	"refresh_token",
	"scope",
	"redirect_url",
}

// Credentials holds the app registration and the current OAuth tokens.
// Empty strings are stored as null.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Scope        string
	RedirectURL  string
	AccessToken  string
	RefreshToken string
}

// HasRegistration reports whether the static app registration is complete
func (c *Credentials) HasRegistration() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.Scope != "" && c.RedirectURL != ""
}

// ClearTokens drops both tokens
func (c *Credentials) ClearTokens() {
	c.AccessToken = ""
	c.RefreshToken = ""
}

func (c Credentials) fields() map[string]*string {
	return map[string]*string{
		"client_id":     nullable(c.ClientID),
		"client_secret": nullable(c.ClientSecret),
		"access_token":  nullable(c.AccessToken),
		"refresh_token": nullable(c.RefreshToken),
		"scope":         nullable(c.Scope),
		"redirect_url":  nullable(c.RedirectURL),
	}
}

// MarshalJSON writes a flat document with exactly the six credential keys
func (c Credentials) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.fields())
}

// UnmarshalJSON rejects documents missing any of the credential keys
func (c *Credentials) UnmarshalJSON(data []byte) error {
	var doc map[string]*string
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	for _, key := range CredentialKeys {
		if _, ok := doc[key]; !ok {
			return fmt.Errorf("credential document is missing %q", key)
		}
	}

	*c = Credentials{
		ClientID:     deref(doc["client_id"]),
		ClientSecret: deref(doc["client_secret"]),
		Scope:        deref(doc["scope"]),
		RedirectURL:  deref(doc["redirect_url"]),
		AccessToken:  deref(doc["access_token"]),
		RefreshToken: deref(doc["refresh_token"]),
	}
	return nil
}
