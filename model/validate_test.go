package model

import (
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validForm() FormConfig {
	return FormConfig{
		Slug: "contact",
		Name: "Contact",
		Fields: []FormFieldConfig{
			{Key: "f1", Name: "email", Label: "Email", Type: FieldEmail, Required: true},
			{Key: "f2", Name: "topic", Label: "Topic", Type: FieldSelect, Options: []FieldOption{{Label: "Sales", Value: "sales"}}},
		},
		Actions: []Action{
			{Kind: ActionWebhook, Webhook: &WebhookAction{URL: "https://hooks.example.com/in"}},
			{Kind: ActionEmail, Email: &EmailAction{To: []string{"team@example.com"}}},
			{Kind: ActionStorage},
		},
	}
}

func TestFormConfig_Validate(t *testing.T) {
	require.NoError(t, validForm().Validate())
}

func TestFormConfig_ValidateUnknownActionKind(t *testing.T) {
	f := validForm()
	f.Actions = append(f.Actions, Action{Kind: "slack"})
	assert.NoError(t, f.Validate())
}

func TestFormConfig_ValidateCollectsEveryProblem(t *testing.T) {
	f := validForm()
	f.Name = ""
	f.Fields = append(f.Fields, FormFieldConfig{Name: "email", Type: FieldText})
	f.Actions[0].Webhook.URL = "not a url"
	f.Actions[1].Email.To = []string{"nobody"}
	f.Actions = append(f.Actions, Action{Kind: ActionEmail})

	err := f.Validate()
	require.Error(t, err)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 5)
}

func TestFieldType(t *testing.T) {
	assert.Equal(t, FieldText, FieldType("").Normalize())
	assert.True(t, FieldType("").Valid())
	assert.False(t, FieldType("color").Valid())
	assert.True(t, FieldDate.TextLike())
	assert.False(t, FieldFile.TextLike())
	assert.False(t, FieldNumber.TextLike())
	assert.True(t, FieldRadio.Enumerated())
	assert.False(t, FieldCheckbox.Enumerated())
}

func TestIsEmail(t *testing.T) {
	assert.True(t, IsEmail("ada@example.com"))
	assert.False(t, IsEmail("not-an-email"))
	assert.False(t, IsEmail(""))
}
