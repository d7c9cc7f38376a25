package oauth

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	oauthgithub "golang.org/x/oauth2/github"
)

var errNoGitHubEmail = errors.New("github account has no usable email")

type GitHub struct {
	base
	userURL   string
	emailsURL string
}

func NewGitHub(clientID, clientSecret, redirectURL string, client *http.Client) *GitHub {
	return &GitHub{
		base: base{
			config: &oauth2.Config{
				ClientID:     clientID,
				ClientSecret: clientSecret,
				RedirectURL:  redirectURL,
				Scopes:       []string{"user:email", "read:user"},
				Endpoint:     oauthgithub.Endpoint,
			},
			httpClient: client,
		},
		userURL:   "https://api.github.com/user",
		emailsURL: "https://api.github.com/user/emails",
	}
}

func (p *GitHub) Name() string { return "github" }

func (p *GitHub) Exchange(ctx context.Context, code string) (*Profile, error) {
	token, err := p.exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	var u struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := p.getJSON(ctx, p.userURL, token.AccessToken, "application/vnd.github.v3+json", &u); err != nil {
		return nil, err
	}

	profile := &Profile{
		ID:     strconv.FormatInt(u.ID, 10),
		Email:  u.Email,
		Name:   u.Name,
		Avatar: u.AvatarURL,
	}
	if profile.Name == "" {
		profile.Name = u.Login
	}

	// The public email may be hidden; the emails endpoint also says whether
	// it is verified.
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := p.getJSON(ctx, p.emailsURL, token.AccessToken, "application/vnd.github.v3+json", &emails); err == nil {
		for _, e := range emails {
			if e.Primary && e.Verified {
				profile.Email = e.Email
				profile.EmailVerified = true
				break
			}
		}
	}

	if profile.Email == "" {
		return nil, errNoGitHubEmail
	}
	return profile, nil
}
