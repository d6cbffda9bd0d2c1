package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func formRequest(form url.Values) (*httptest.ResponseRecorder, *http.Request) {
	req := httptest.NewRequest(http.MethodPost, "/add", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return httptest.NewRecorder(), req
}

func TestParseTaskForm(t *testing.T) {
	rec, req := formRequest(url.Values{
		"title":       {"  Buy milk  "},
		"description": {" 2 liters "},
		"priority":    {"high"},
		"due_date":    {"2024-02-29"},
	})

	form, err := parseTaskForm(rec, req)

	require.NoError(t, err)
	assert.Equal(t, "Buy milk", form.Title)
	assert.Equal(t, "2 liters", form.Description)
	assert.Equal(t, "high", form.Priority)
	require.NotNil(t, form.DueDate)
	assert.Equal(t, "2024-02-29", form.DueDate.Format(dueDateLayout))
}

func TestParseTaskForm_Errors(t *testing.T) {
	tests := []struct {
		name  string
		form  url.Values
		field string
	}{
		{"Missing title", url.Values{}, "title"},
		{"Blank title", url.Values{"title": {"\t "}}, "title"},
		{"Not a date", url.Values{"title": {"x"}, "due_date": {"soon"}}, "due_date"},
		{"Impossible date", url.Values{"title": {"x"}, "due_date": {"2023-02-29"}}, "due_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, req := formRequest(tt.form)

			_, err := parseTaskForm(rec, req)

			var formErr *FormError
			require.True(t, errors.As(err, &formErr))
			assert.Equal(t, tt.field, formErr.Field)
		})
	}
}

func TestParseForm_TooLarge(t *testing.T) {
	rec, req := formRequest(url.Values{"title": {strings.Repeat("a", maxFormBytes+1)}})

	_, err := parseTaskForm(rec, req)

	assert.Equal(t, "Form is too large", formMessage(err))
}

func TestValidateRegistration(t *testing.T) {
	valid := credentialsForm{Username: "tester", Email: "test@example.com", Password: "pass"}
	assert.NoError(t, validateRegistration(valid))

	noName := valid
	noName.Username = ""
	assert.EqualError(t, validateRegistration(noName), "username: Username is required")

	badEmail := valid
	badEmail.Email = "test@"
	assert.EqualError(t, validateRegistration(badEmail), "email: Invalid email")

	short := valid
	short.Password = "abc"
	assert.EqualError(t, validateRegistration(short), "password: Password must be at least 4 characters long")

	longest := valid
	longest.Password = strings.Repeat("p", maxPasswordLen)
	assert.NoError(t, validateRegistration(longest))

	long := valid
	long.Password = strings.Repeat("p", maxPasswordLen+1)
	assert.EqualError(t, validateRegistration(long), "password: Password must be at most 72 bytes long")

	// multi-byte characters count in bytes
	wide := valid
	wide.Password = strings.Repeat("é", 37)
	assert.Error(t, validateRegistration(wide))
}

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"test@example.com", true},
		{"first.last+tag@sub.example.org", true},
		{"invalid", false},
		{"test@", false},
		{"@example.com", false},
		{"test@example", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isValidEmail(tt.email); got != tt.want {
			t.Errorf("isValidEmail(%q) = %v, want %v", tt.email, got, tt.want)
		}
	}
}

func TestFormMessage(t *testing.T) {
	assert.Equal(t, "Title is required", formMessage(&FormError{Field: "title", Message: "Title is required"}))
	assert.Equal(t, "Invalid form submission", formMessage(errors.New("boom")))
}
