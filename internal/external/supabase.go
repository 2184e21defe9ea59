package external

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"stockbrief/internal/types"
)

const supabaseProvider = "supabase"

// SupabaseAuthConfig configures the Supabase Auth client.
type SupabaseAuthConfig struct {
	// ProjectURL is the project root, e.g. https://abc.supabase.co.
	ProjectURL     string
	ServiceRoleKey string
}

// SupabaseAuthClient resolves access tokens with GET /auth/v1/user.
type SupabaseAuthClient struct {
	base   HTTPDoer
	cfg    SupabaseAuthConfig
	logger *slog.Logger
}

// NewSupabaseAuthClient creates a client. The http.Client timeout bounds
// every lookup.
func NewSupabaseAuthClient(httpClient *http.Client, cfg SupabaseAuthConfig, logger *slog.Logger) *SupabaseAuthClient {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.ProjectURL = strings.TrimRight(cfg.ProjectURL, "/")
	return &SupabaseAuthClient{
		base:   NewBaseClient(httpClient, supabaseProvider),
		cfg:    cfg,
		logger: logger,
	}
}

type supabaseUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// GetUser implements IdentityProvider.
func (c *SupabaseAuthClient) GetUser(ctx context.Context, accessToken string) (*types.UserIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ProjectURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build identity request", err)
	}
	req.Header.Set("apikey", c.cfg.ServiceRoleKey)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, retag(types.ErrCodeUpstreamIdentity, supabaseProvider, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid or expired access token", nil)
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		// Supabase answers 400/404 for malformed or unknown-subject tokens.
		c.logger.WarnContext(ctx, "identity provider rejected token", "status", resp.StatusCode)
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid or expired access token", nil)
	case resp.StatusCode != http.StatusOK:
		return nil, statusError(types.ErrCodeUpstreamIdentity, supabaseProvider, resp)
	}

	var user supabaseUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamIdentity, "failed to decode identity response", err)
	}
	if user.ID == "" {
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "token did not resolve to a user", nil)
	}

	return &types.UserIdentity{ID: user.ID, Email: user.Email}, nil
}

func (c *SupabaseAuthClient) String() string {
	return fmt.Sprintf("SupabaseAuthClient(%s)", c.cfg.ProjectURL)
}

var _ IdentityProvider = (*SupabaseAuthClient)(nil)
