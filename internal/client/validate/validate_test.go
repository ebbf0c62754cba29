package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type form struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Method   string `json:"method" validate:"oneof=credit paypal"`
}

func TestMessage(t *testing.T) {
	v := New()

	cases := []struct {
		name string
		in   form
		want string
	}{
		{"required", form{Password: "secret1", Method: "paypal"}, "email is required"},
		{"email", form{Email: "nope", Password: "secret1", Method: "paypal"}, "email must be a valid email address"},
		{"min", form{Email: "a@b.co", Password: "123", Method: "paypal"}, "password must be at least 6 characters"},
		{"oneof", form{Email: "a@b.co", Password: "secret1", Method: "cash"}, "method must be one of: credit paypal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Struct(tc.in)
			require.Error(t, err)
			assert.Equal(t, tc.want, Message(err))
		})
	}

	assert.NoError(t, v.Struct(form{Email: "a@b.co", Password: "secret1", Method: "credit"}))
}

func TestMessage_PlainError(t *testing.T) {
	assert.Equal(t, "boom", Message(errors.New("boom")))
}
