package cmd

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentmitra/portalctl/internal/api"
	"github.com/agentmitra/portalctl/internal/authz"
	"github.com/agentmitra/portalctl/internal/errors"
	"github.com/agentmitra/portalctl/internal/tui"
	"github.com/agentmitra/portalctl/internal/ux"
)

func newAuthCmd(a *App) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign in, sign out and inspect the session",
		Long: `Manage the portal session stored in ~/.agentmitra/session.json.

Subcommands:
  login   Sign in with phone number and password, or agent code
  otp     Sign in with a one-time password sent by SMS
  logout  End the session
  status  Show who is signed in

Examples:
  portalctl auth login --phone +919876543210
  portalctl auth otp --phone +919876543210
  portalctl auth status
  portalctl auth logout`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	authCmd.AddCommand(newAuthLoginCmd(a), newAuthOTPCmd(a), newAuthLogoutCmd(a), newAuthStatusCmd(a))
	return authCmd
}

func newAuthLoginCmd(a *App) *cobra.Command {
	var creds tui.Credentials

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with phone number and password",
		Long: `Sign in and store the access and refresh tokens.

Missing credentials are prompted for when running in a terminal.

Examples:
  portalctl auth login --phone +919876543210 --password '...'
  portalctl auth login --phone +919876543210 --agent-code AGT-1042`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if creds.PhoneNumber == "" || (creds.Password == "" && creds.AgentCode == "") {
				if !canPrompt(a) {
					return missingFlagsError("phone", "password")
				}
				prompted, err := tui.PromptLogin()
				if err != nil {
					return err
				}
				creds = prompted
			}
			if err := tui.ValidatePhone(creds.PhoneNumber); err != nil {
				return usageError(err.Error())
			}

			resp, err := a.Client.Auth.Login(cmd.Context(), api.LoginRequest{
				PhoneNumber: strings.TrimSpace(creds.PhoneNumber),
				Password:    creds.Password,
				AgentCode:   creds.AgentCode,
			})
			if err != nil {
				return errors.Wrap(errors.ErrCodeAuthLoginFailed, "login failed", err).
					WithSuggestion("Check the phone number and password")
			}
			return a.establish(cmd, resp)
		},
	}

	cmd.Flags().StringVar(&creds.PhoneNumber, "phone", "", "phone number")
	cmd.Flags().StringVar(&creds.Password, "password", "", "password")
	cmd.Flags().StringVar(&creds.AgentCode, "agent-code", "", "agent code, instead of a password")
	return cmd
}

func newAuthOTPCmd(a *App) *cobra.Command {
	var phone, code string

	cmd := &cobra.Command{
		Use:   "otp",
		Short: "Sign in with a one-time password",
		Long: `Request a one-time password by SMS and exchange it for a session.

With --code the OTP is verified without requesting a new one.

Examples:
  portalctl auth otp --phone +919876543210
  portalctl auth otp --phone +919876543210 --code 123456`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if phone == "" {
				if !canPrompt(a) {
					return missingFlagsError("phone")
				}
				p, err := tui.PromptPhone("")
				if err != nil {
					return err
				}
				phone = p
			}
			phone = strings.TrimSpace(phone)
			if err := tui.ValidatePhone(phone); err != nil {
				return usageError(err.Error())
			}

			if code == "" {
				if err := a.Client.Auth.SendOTP(ctx, phone); err != nil {
					return errors.Wrap(errors.ErrCodeAuthOTPFailed, "could not send the one-time password", err)
				}
				if !canPrompt(a) {
					return missingFlagsError("code")
				}
				c, err := tui.PromptOTP(phone)
				if err != nil {
					return err
				}
				code = c
			}
			if err := tui.ValidateOTP(code); err != nil {
				return usageError(err.Error())
			}

			resp, err := a.Client.Auth.VerifyOTP(ctx, phone, strings.TrimSpace(code))
			if err != nil {
				return errors.Wrap(errors.ErrCodeAuthOTPFailed, "one-time password was not accepted", err).
					WithSuggestion("Request a new code with 'portalctl auth otp --phone " + phone + "'")
			}
			return a.establish(cmd, resp)
		},
	}

	cmd.Flags().StringVar(&phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&code, "code", "", "one-time password already received")
	return cmd
}

// establish stores the tokens and makes the user current.
func (a *App) establish(cmd *cobra.Command, resp *api.AuthResponse) error {
	user, err := a.Client.Auth.Establish(resp)
	if err != nil {
		return errors.Wrap(errors.ErrCodeAuthInvalidToken, "the server returned an unusable access token", err)
	}
	a.RBAC.Login(user)
	a.Logger.Info("signed in", "user_id", user.UserID, "roles", user.Roles)

	return a.render(cmd, ux.Document{
		Data: sessionView(user, time.Now()),
		Text: ux.Text("Signed in as " + user.Name() + " (" + strings.Join(user.Roles, ", ") + ")"),
	})
}

func newAuthLogoutCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Long:  `Ask the server to end the session, then remove the local tokens even if the server call fails.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wasSignedIn := a.RBAC.IsAuthenticated()
			if err := a.RBAC.Logout(cmd.Context()); err != nil {
				return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to remove the session file", err)
			}
			msg := "Signed out"
			if !wasSignedIn {
				msg = "Not signed in"
			}
			return a.render(cmd, ux.Document{
				Data: map[string]bool{"authenticated": false},
				Text: ux.Text(msg),
			})
		},
	}
}

// SessionView is the machine-readable form of the current session.
type SessionView struct {
	Authenticated bool       `json:"authenticated" yaml:"authenticated"`
	UserID        string     `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Name          string     `json:"name,omitempty" yaml:"name,omitempty"`
	Roles         []string   `json:"roles,omitempty" yaml:"roles,omitempty"`
	TenantID      string     `json:"tenant_id,omitempty" yaml:"tenant_id,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	ExpiresIn     string     `json:"expires_in,omitempty" yaml:"expires_in,omitempty"`
}

func sessionView(u *authz.User, now time.Time) SessionView {
	if u == nil {
		return SessionView{}
	}
	v := SessionView{
		Authenticated: true,
		UserID:        u.UserID,
		Name:          u.Name(),
		Roles:         u.Roles,
		TenantID:      u.TenantID,
	}
	if !u.ExpiresAt.IsZero() {
		exp := u.ExpiresAt
		v.ExpiresAt = &exp
		v.ExpiresIn = exp.Sub(now).Round(time.Second).String()
	}
	return v
}

func newAuthStatusCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show who is signed in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := sessionView(a.RBAC.User(), time.Now())
			if !v.Authenticated {
				return a.render(cmd, ux.Document{
					Data: v,
					Text: ux.Text("Not signed in. Run 'portalctl auth login' to start a session."),
				})
			}

			fields := ux.Fields{
				{"User", v.Name},
				{"User ID", v.UserID},
				{"Roles", strings.Join(v.Roles, ", ")},
			}
			if v.TenantID != "" {
				fields = append(fields, [2]string{"Tenant", v.TenantID})
			}
			if v.ExpiresAt != nil {
				fields = append(fields, [2]string{"Expires", v.ExpiresAt.Local().Format(time.RFC1123) + " (in " + v.ExpiresIn + ")"})
			}
			return a.render(cmd, ux.Document{Data: v, Text: fields})
		},
	}
}
