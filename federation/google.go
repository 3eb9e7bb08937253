package federation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	authkit "github.com/readshelf/authkit"
)

const googleUserinfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// maxProfileBody bounds how much of a provider profile response is read.
const maxProfileBody = 1 << 20

var errIncompleteProfile = errors.New("provider profile incomplete")

// GoogleConfig configures the Google verifier.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// UserinfoURL overrides the profile endpoint, for tests.
	UserinfoURL string
	// Endpoint overrides the OAuth endpoint pair, for tests.
	Endpoint oauth2.Endpoint
	// HTTPClient overrides the client used for exchange and profile
	// fetch, for tests.
	HTTPClient *http.Client
}

// GoogleVerifier exchanges Google authorization codes for verified
// identities.
type GoogleVerifier struct {
	oauth       *oauth2.Config
	userinfoURL string
	httpClient  *http.Client
}

// NewGoogleVerifier creates a GoogleVerifier.
func NewGoogleVerifier(cfg GoogleConfig) (*GoogleVerifier, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("google client id and secret required")
	}
	userinfo := cfg.UserinfoURL
	if userinfo == "" {
		userinfo = googleUserinfoURL
	}
	endpoint := cfg.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = endpoints.Google
	}
	return &GoogleVerifier{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoint,
		},
		userinfoURL: userinfo,
		httpClient:  cfg.HTTPClient,
	}, nil
}

// AuthCodeURL returns the Google consent page URL for state.
func (v *GoogleVerifier) AuthCodeURL(state string) string {
	return v.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange redeems the callback code and fetches the user profile.
func (v *GoogleVerifier) Exchange(ctx context.Context, code string) (authkit.Identity, error) {
	ctx = withHTTPClient(ctx, v.httpClient)

	token, err := v.oauth.Exchange(ctx, code)
	if err != nil {
		return authkit.Identity{}, fmt.Errorf("google code exchange: %w", err)
	}

	var profile struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := fetchJSON(ctx, v.oauth.Client(ctx, token), v.userinfoURL, nil, &profile); err != nil {
		return authkit.Identity{}, fmt.Errorf("google userinfo: %w", err)
	}
	if profile.Sub == "" {
		return authkit.Identity{}, errIncompleteProfile
	}
	if profile.Email == "" {
		return authkit.Identity{}, fmt.Errorf("%w: no email on google profile", authkit.ErrEmailUnavailable)
	}

	return authkit.Identity{
		Provider:      authkit.ProviderGoogle,
		Subject:       profile.Sub,
		Email:         profile.Email,
		EmailVerified: profile.EmailVerified,
		Name:          profile.Name,
	}, nil
}

func withHTTPClient(ctx context.Context, client *http.Client) context.Context {
	if client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, client)
}

func fetchJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	for k, value := range headers {
		req.Header.Set(k, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProfileBody))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}
