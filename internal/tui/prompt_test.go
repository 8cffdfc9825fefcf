package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentmitra/portalctl/internal/dataimport"
)

func TestShouldPromptDisabledInCI(t *testing.T) {
	for _, env := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL"} {
		t.Run(env, func(t *testing.T) {
			t.Setenv(env, "true")
			assert.False(t, ShouldPrompt())
		})
	}
}

func TestValidatePhone(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"9876543210", true},
		{"+919876543210", true},
		{" 9876543210 ", true},
		{"98765", false},
		{"98765-43210", false},
		{"", false},
	}
	for _, tt := range tests {
		err := ValidatePhone(tt.in)
		assert.Equal(t, tt.ok, err == nil, tt.in)
	}
}

func TestValidateOTP(t *testing.T) {
	assert.NoError(t, ValidateOTP("123456"))
	assert.NoError(t, ValidateOTP("1234"))
	assert.Error(t, ValidateOTP("12a456"))
	assert.Error(t, ValidateOTP("12"))
}

func TestForms(t *testing.T) {
	var c Credentials
	assert.NotNil(t, LoginForm(&c))

	phone := "9876543210"
	assert.NotNil(t, PhoneForm(&phone))

	var code string
	assert.NotNil(t, OTPForm(phone, &code))
}

func TestTemplateOptions(t *testing.T) {
	templates := []dataimport.ImportTemplate{
		{ID: "t1", Name: "Customers", EntityType: dataimport.EntityCustomers},
		{ID: "t2", Name: "Legacy"},
	}

	opts := TemplateOptions(templates)
	if assert.Len(t, opts, 3) {
		assert.Equal(t, noTemplate, opts[0].Value)
		assert.Equal(t, "Customers (customers)", opts[1].Key)
		assert.Equal(t, "Legacy", opts[2].Key)
	}

	assert.Nil(t, FindTemplate(templates, noTemplate))
	assert.Nil(t, FindTemplate(templates, "missing"))
	assert.Equal(t, "Legacy", FindTemplate(templates, "t2").Name)
}
