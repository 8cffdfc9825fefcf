package api

import (
	"context"
	"net/http"

	"github.com/agentmitra/portalctl/internal/auth"
	"github.com/agentmitra/portalctl/internal/authz"
)

// AuthService covers login, OTP, token refresh and logout.
type AuthService struct{ c *Client }

// LoginRequest authenticates with a password or agent code.
type LoginRequest struct {
	PhoneNumber string `json:"phone_number,omitempty"`
	Password    string `json:"password,omitempty"`
	AgentCode   string `json:"agent_code,omitempty"`
}

// AuthResponse is returned by login, OTP verification and refresh.
type AuthResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	User         *authz.User `json:"user,omitempty"`
}

// Session converts the response into what the session store persists.
func (r *AuthResponse) Session() *auth.Session {
	return &auth.Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		User:         r.User,
	}
}

// Login exchanges credentials for a token pair.
func (s *AuthService) Login(ctx context.Context, creds LoginRequest) (*AuthResponse, error) {
	r, err := s.authCall("/auth/login").withJSON(creds)
	if err != nil {
		return nil, err
	}
	return getData[*AuthResponse](ctx, s.c, r)
}

// SendOTP asks the backend to text a one-time password to phone.
func (s *AuthService) SendOTP(ctx context.Context, phone string) error {
	r, err := s.authCall("/auth/send-otp").withJSON(map[string]string{"phone_number": phone})
	if err != nil {
		return err
	}
	return exec(ctx, s.c, r)
}

// VerifyOTP exchanges a phone number and one-time password for a token pair.
func (s *AuthService) VerifyOTP(ctx context.Context, phone, otp string) (*AuthResponse, error) {
	r, err := s.authCall("/auth/verify-otp").withJSON(map[string]string{
		"phone_number": phone,
		"otp":          otp,
	})
	if err != nil {
		return nil, err
	}
	return getData[*AuthResponse](ctx, s.c, r)
}

// Refresh exchanges a refresh token for a new pair. It never retries.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	r, err := s.authCall("/auth/refresh").withJSON(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, err
	}
	resp, err := getData[*AuthResponse](ctx, s.c, r)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return &AuthResponse{}, nil
	}
	return resp, nil
}

// Logout ends the session server-side. Callers treat failure as best-effort.
func (s *AuthService) Logout(ctx context.Context) error {
	return exec(ctx, s.c, s.authCall("/auth/logout"))
}

// Establish persists a successful auth response and returns the user
// decoded from its access token.
func (s *AuthService) Establish(resp *AuthResponse) (*authz.User, error) {
	user, err := auth.DecodeAccessToken(resp.AccessToken)
	if err != nil {
		return nil, err
	}
	if err := s.c.store.Save(resp.Session()); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) authCall(route string) request {
	r := endpoint(http.MethodPost, route)
	r.authFlow = true
	return r
}
