package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"MarketPulse/internal/config"

	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog"
)

const (
	mpinLoginPath     = "/rest/auth/angelbroking/user/v1/loginByMPIN"
	passwordLoginPath = "/rest/auth/angelbroking/user/v1/loginByPassword"
)

// Session is an authenticated broker handle, valid for the process lifetime.
type Session struct {
	ClientCode   string
	JWTToken     string
	RefreshToken string
	FeedToken    string
}

// LoginResponse is the decoded result of a login call. Raw keeps the body for diagnostics.
type LoginResponse struct {
	Status       bool
	Message      string
	ErrorCode    string
	JWTToken     string
	RefreshToken string
	FeedToken    string
	Raw          []byte
}

// AuthError is returned when the broker answers a login with a failure status.
type AuthError struct {
	Method    string
	Message   string
	ErrorCode string
	Raw       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("smartapi %s login failed: %s (%s), response: %s", e.Method, e.Message, e.ErrorCode, e.Raw)
}

// LoginAPI is the subset of the broker used to open a session.
type LoginAPI interface {
	LoginByMPIN(ctx context.Context, clientCode, mpin string) (*LoginResponse, error)
	LoginByPassword(ctx context.Context, clientCode, password, code string) (*LoginResponse, error)
}

// LoginByMPIN opens a session with the client code and MPIN.
// A failure status from the broker is returned in the response, not as an error.
func (c *Client) LoginByMPIN(ctx context.Context, clientCode, mpin string) (*LoginResponse, error) {
	return c.login(ctx, mpinLoginPath, map[string]string{
		"clientcode": clientCode,
		"mpin":       mpin,
	})
}

// LoginByPassword opens a session with the account password and a current TOTP code.
func (c *Client) LoginByPassword(ctx context.Context, clientCode, password, code string) (*LoginResponse, error) {
	return c.login(ctx, passwordLoginPath, map[string]string{
		"clientcode": clientCode,
		"password":   password,
		"totp":       code,
	})
}

func (c *Client) login(ctx context.Context, path string, payload map[string]string) (*LoginResponse, error) {
	data, err := c.post(ctx, path, "", payload)
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	resp := &LoginResponse{
		Status:    env.Status,
		Message:   env.Message,
		ErrorCode: env.ErrorCode,
		Raw:       data,
	}
	if env.Status && !env.empty() {
		var tokens struct {
			JWTToken     string `json:"jwtToken"`
			RefreshToken string `json:"refreshToken"`
			FeedToken    string `json:"feedToken"`
		}
		if err := json.Unmarshal(env.Data, &tokens); err != nil {
			return nil, fmt.Errorf("decode login tokens: %w", err)
		}
		resp.JWTToken = tokens.JWTToken
		resp.RefreshToken = tokens.RefreshToken
		resp.FeedToken = tokens.FeedToken
	}
	return resp, nil
}

// CodeGenerator derives a one-time code from a TOTP seed at the given instant.
type CodeGenerator func(secret string, t time.Time) (string, error)

// SessionManager picks a login strategy from the configured credentials and opens a session.
type SessionManager struct {
	API      LoginAPI
	Creds    config.Broker
	Generate CodeGenerator
	Now      func() time.Time
	Logger   zerolog.Logger
}

// NewSessionManager creates a manager using standard RFC 6238 codes.
func NewSessionManager(api LoginAPI, creds config.Broker, lg zerolog.Logger) *SessionManager {
	return &SessionManager{
		API:      api,
		Creds:    creds,
		Generate: totp.GenerateCode,
		Now:      time.Now,
		Logger:   lg,
	}
}

// Acquire logs in once. MPIN wins when present; otherwise password plus a fresh TOTP code.
func (m *SessionManager) Acquire(ctx context.Context) (*Session, error) {
	var (
		method string
		resp   *LoginResponse
		err    error
	)

	switch {
	case m.Creds.HasMPIN():
		method = "mpin"
		m.Logger.Info().Str("client", m.Creds.ClientID).Msg("trying MPIN login")
		resp, err = m.API.LoginByMPIN(ctx, m.Creds.ClientID, m.Creds.MPIN)
	case m.Creds.HasPasswordTOTP():
		method = "password+totp"
		code, genErr := m.Generate(m.Creds.TOTPSecret, m.Now())
		if genErr != nil {
			return nil, fmt.Errorf("generate totp: %w", genErr)
		}
		m.Logger.Info().Str("client", m.Creds.ClientID).Str("otp", code).Msg("trying password+TOTP login")
		resp, err = m.API.LoginByPassword(ctx, m.Creds.ClientID, m.Creds.Password, code)
	default:
		return nil, config.ErrMissingCredentials
	}

	if err != nil {
		return nil, fmt.Errorf("%s login: %w", method, err)
	}
	if !resp.Status {
		return nil, &AuthError{
			Method:    method,
			Message:   resp.Message,
			ErrorCode: resp.ErrorCode,
			Raw:       string(resp.Raw),
		}
	}

	m.Logger.Info().Str("method", method).Msg("login success")
	return &Session{
		ClientCode:   m.Creds.ClientID,
		JWTToken:     resp.JWTToken,
		RefreshToken: resp.RefreshToken,
		FeedToken:    resp.FeedToken,
	}, nil
}
