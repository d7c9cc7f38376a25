package oauth

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

var errNoGoogleEmail = errors.New("google account has no email")

type Google struct {
	base
	userinfoURL string
}

func NewGoogle(clientID, clientSecret, redirectURL string, client *http.Client) *Google {
	return &Google{
		base: base{
			config: &oauth2.Config{
				ClientID:     clientID,
				ClientSecret: clientSecret,
				RedirectURL:  redirectURL,
				Scopes:       []string{"openid", "email", "profile"},
				Endpoint:     google.Endpoint,
			},
			httpClient: client,
		},
		userinfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
	}
}

func (p *Google) Name() string { return "google" }

func (p *Google) Exchange(ctx context.Context, code string) (*Profile, error) {
	token, err := p.exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	var u struct {
		ID            string `json:"id"`
		Email         string `json:"email"`
		VerifiedEmail bool   `json:"verified_email"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := p.getJSON(ctx, p.userinfoURL, token.AccessToken, "application/json", &u); err != nil {
		return nil, err
	}
	if u.Email == "" {
		return nil, errNoGoogleEmail
	}

	return &Profile{
		ID:            u.ID,
		Email:         u.Email,
		EmailVerified: u.VerifiedEmail,
		Name:          u.Name,
		Avatar:        u.Picture,
	}, nil
}
