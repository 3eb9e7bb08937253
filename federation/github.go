package federation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	authkit "github.com/readshelf/authkit"
)

const (
	githubUserURL   = "https://api.github.com/user"
	githubEmailsURL = "https://api.github.com/user/emails"
)

// GitHubConfig configures the GitHub verifier.
type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// UserURL and EmailsURL override the API endpoints, for tests.
	UserURL   string
	EmailsURL string
	// Endpoint overrides the OAuth endpoint pair, for tests.
	Endpoint oauth2.Endpoint
	// HTTPClient overrides the client used for exchange and profile
	// fetch, for tests.
	HTTPClient *http.Client
}

// GitHubVerifier exchanges GitHub authorization codes for verified
// identities.
type GitHubVerifier struct {
	oauth      *oauth2.Config
	userURL    string
	emailsURL  string
	httpClient *http.Client
}

// NewGitHubVerifier creates a GitHubVerifier.
func NewGitHubVerifier(cfg GitHubConfig) (*GitHubVerifier, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("github client id and secret required")
	}
	userURL := cfg.UserURL
	if userURL == "" {
		userURL = githubUserURL
	}
	emailsURL := cfg.EmailsURL
	if emailsURL == "" {
		emailsURL = githubEmailsURL
	}
	endpoint := cfg.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = endpoints.GitHub
	}
	return &GitHubVerifier{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     endpoint,
		},
		userURL:    userURL,
		emailsURL:  emailsURL,
		httpClient: cfg.HTTPClient,
	}, nil
}

// AuthCodeURL returns the GitHub authorize page URL for state.
func (v *GitHubVerifier) AuthCodeURL(state string) string {
	return v.oauth.AuthCodeURL(state)
}

// Exchange redeems the callback code, fetches the user profile, and
// resolves the primary verified email. GitHub profiles may hide the email
// on /user, so /user/emails is authoritative.
func (v *GitHubVerifier) Exchange(ctx context.Context, code string) (authkit.Identity, error) {
	ctx = withHTTPClient(ctx, v.httpClient)

	token, err := v.oauth.Exchange(ctx, code)
	if err != nil {
		return authkit.Identity{}, fmt.Errorf("github code exchange: %w", err)
	}
	client := v.oauth.Client(ctx, token)
	headers := map[string]string{"Accept": "application/vnd.github+json"}

	var profile struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
	}
	if err := fetchJSON(ctx, client, v.userURL, headers, &profile); err != nil {
		return authkit.Identity{}, fmt.Errorf("github user: %w", err)
	}
	if profile.ID == 0 {
		return authkit.Identity{}, errIncompleteProfile
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := fetchJSON(ctx, client, v.emailsURL, headers, &emails); err != nil {
		return authkit.Identity{}, fmt.Errorf("github emails: %w", err)
	}

	identity := authkit.Identity{
		Provider: authkit.ProviderGitHub,
		Subject:  strconv.FormatInt(profile.ID, 10),
		Name:     profile.Name,
	}
	if identity.Name == "" {
		identity.Name = profile.Login
	}

	for _, e := range emails {
		if e.Primary {
			identity.Email = e.Email
			identity.EmailVerified = e.Verified
			break
		}
	}
	if identity.Email == "" {
		return authkit.Identity{}, fmt.Errorf("%w: no primary email on github profile", authkit.ErrEmailUnavailable)
	}
	return identity, nil
}
