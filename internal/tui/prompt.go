package tui

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/agentmitra/portalctl/internal/dataimport"
)

// Prompt represents a simple interactive prompt configuration
type Prompt struct {
	Message     string
	Default     string
	Placeholder string
	Required    bool
}

// PromptForString displays an interactive prompt and returns the user's input
func PromptForString(p Prompt) (string, error) {
	value := p.Default

	input := huh.NewInput().
		Title(p.Message).
		Placeholder(p.Placeholder).
		Value(&value)

	if err := huh.NewForm(huh.NewGroup(input)).Run(); err != nil {
		return "", fmt.Errorf("prompt failed: %w", err)
	}

	if p.Required && value == "" {
		return "", fmt.Errorf("value is required")
	}

	return value, nil
}

// PromptForConfirmation displays a yes/no confirmation prompt
func PromptForConfirmation(message string, defaultValue bool) (bool, error) {
	confirmed := defaultValue

	confirm := huh.NewConfirm().
		Title(message).
		Value(&confirmed)

	if err := huh.NewForm(huh.NewGroup(confirm)).Run(); err != nil {
		return false, fmt.Errorf("prompt failed: %w", err)
	}

	return confirmed, nil
}

// Credentials are what the password login form collects.
type Credentials struct {
	PhoneNumber string
	Password    string
	AgentCode   string
}

var (
	phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)
	otpPattern   = regexp.MustCompile(`^[0-9]{4,8}$`)
)

// ValidatePhone accepts 10 to 15 digits with an optional leading +.
func ValidatePhone(s string) error {
	if !phonePattern.MatchString(strings.TrimSpace(s)) {
		return fmt.Errorf("enter a phone number of 10 to 15 digits")
	}
	return nil
}

// ValidateOTP accepts a 4 to 8 digit code.
func ValidateOTP(s string) error {
	if !otpPattern.MatchString(strings.TrimSpace(s)) {
		return fmt.Errorf("enter the numeric code you received")
	}
	return nil
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

// LoginForm builds the phone and password form. Values are written into c
// when the form completes.
func LoginForm(c *Credentials) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Phone number").
				Placeholder("+919876543210").
				Value(&c.PhoneNumber).
				Validate(ValidatePhone),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&c.Password).
				Validate(required("password")),
			huh.NewInput().
				Title("Agent code").
				Description("Optional").
				Value(&c.AgentCode),
		),
	)
}

// PromptLogin runs LoginForm.
func PromptLogin() (Credentials, error) {
	var c Credentials
	if err := LoginForm(&c).Run(); err != nil {
		return Credentials{}, fmt.Errorf("prompt failed: %w", err)
	}
	c.PhoneNumber = strings.TrimSpace(c.PhoneNumber)
	c.AgentCode = strings.TrimSpace(c.AgentCode)
	return c, nil
}

// PhoneForm asks for the number an OTP should be sent to.
func PhoneForm(phone *string) *huh.Form {
	return huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Phone number").
			Description("A one-time code will be sent by SMS").
			Value(phone).
			Validate(ValidatePhone),
	))
}

// OTPForm asks for the code sent to phone.
func OTPForm(phone string, code *string) *huh.Form {
	return huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Verification code").
			Description("Sent to " + phone).
			Value(code).
			Validate(ValidateOTP),
	))
}

// PromptPhone runs PhoneForm, prefilled with phone.
func PromptPhone(phone string) (string, error) {
	if err := PhoneForm(&phone).Run(); err != nil {
		return "", fmt.Errorf("prompt failed: %w", err)
	}
	return strings.TrimSpace(phone), nil
}

// PromptOTP runs OTPForm.
func PromptOTP(phone string) (string, error) {
	var code string
	if err := OTPForm(phone, &code).Run(); err != nil {
		return "", fmt.Errorf("prompt failed: %w", err)
	}
	return strings.TrimSpace(code), nil
}

// noTemplate is the option value meaning "validate without a template".
const noTemplate = ""

// TemplateOptions lists templates as select options, led by a no-template
// choice.
func TemplateOptions(templates []dataimport.ImportTemplate) []huh.Option[string] {
	opts := []huh.Option[string]{huh.NewOption("No template (only check the file)", noTemplate)}
	for _, t := range templates {
		label := t.Name
		if t.EntityType != "" {
			label = fmt.Sprintf("%s (%s)", t.Name, t.EntityType)
		}
		opts = append(opts, huh.NewOption(label, t.ID))
	}
	return opts
}

// FindTemplate returns the template with id, or nil for the no-template
// choice or an unknown id.
func FindTemplate(templates []dataimport.ImportTemplate, id string) *dataimport.ImportTemplate {
	if id == noTemplate {
		return nil
	}
	for i := range templates {
		if templates[i].ID == id {
			return &templates[i]
		}
	}
	return nil
}

// PromptTemplate lets the user pick an import template.
func PromptTemplate(templates []dataimport.ImportTemplate) (*dataimport.ImportTemplate, error) {
	selected := noTemplate
	field := huh.NewSelect[string]().
		Title("Import template").
		Options(TemplateOptions(templates)...).
		Value(&selected)

	if err := huh.NewForm(huh.NewGroup(field)).Run(); err != nil {
		return nil, fmt.Errorf("prompt failed: %w", err)
	}
	return FindTemplate(templates, selected), nil
}

// IsInteractive returns true if stdin is a terminal (not piped)
func IsInteractive() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// ShouldPrompt returns true if prompts should be shown based on environment
// Prompts are disabled in CI environments or when stdin is not a terminal
func ShouldPrompt() bool {
	ciEnvVars := []string{
		"CI",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"JENKINS_URL",
		"TRAVIS",
		"CIRCLECI",
		"BUILDKITE",
	}

	for _, envVar := range ciEnvVars {
		if os.Getenv(envVar) != "" {
			return false
		}
	}

	return IsInteractive()
}
