package nifi

import (
	"context"
)

// RemoteTarget identifies a remote NiFi instance: its network address, a
// reference to stored credentials, and its coordinate within the
// organizational naming hierarchy (e.g. datacenter/org-unit/host).
// Targets are created and updated outside the engine; the engine reads them.
type RemoteTarget struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	BaseURL       string   `json:"base_url"`
	CredentialRef string   `json:"credential_ref,omitempty"`
	Hierarchy     []string `json:"hierarchy,omitempty"`
	Description   string   `json:"description,omitempty"`
}

// RemoteSession is an authenticated handle on one remote target. It is an
// explicit value passed into every remote operation, never ambient state.
// ClientID identifies this session for remote-side optimistic revisions.
type RemoteSession struct {
	Target   RemoteTarget
	Token    string
	ClientID string
}

// Credentials is the material a credential provider hands back for a target.
// Either Token is set (pre-issued), or Username/Password are exchanged for
// one at session open.
type Credentials struct {
	Username string
	Password string
	Token    string
}

// CredentialProvider resolves the credential reference on a RemoteTarget.
// Storage and encryption of credentials are outside the engine.
type CredentialProvider interface {
	Lookup(ctx context.Context, credentialRef string) (Credentials, error)
}

// SessionProvider opens authenticated sessions against remote targets. The
// engine calls it once per target per batch; an authentication failure is
// fatal for that target's units only.
type SessionProvider interface {
	OpenSession(ctx context.Context, target RemoteTarget) (*RemoteSession, error)
}

// StaticCredentials is a CredentialProvider returning the same credentials
// for every reference. Useful for single-operator deployments and tests.
type StaticCredentials struct {
	Username string
	Password string
	Token    string
}

// Lookup implements CredentialProvider.
func (s StaticCredentials) Lookup(_ context.Context, _ string) (Credentials, error) {
	return Credentials{Username: s.Username, Password: s.Password, Token: s.Token}, nil
}
