package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramAuthData_DataCheckString(t *testing.T) {
	data := TelegramAuthData{
		"username":   "durov",
		"id":         "1",
		"hash":       "ignored",
		"auth_date":  "1700000000",
		"first_name": "Pavel",
	}

	assert.Equal(t, "auth_date=1700000000\nfirst_name=Pavel\nid=1\nusername=durov", data.DataCheckString())
}

func TestTelegramAuthDataFromJSON(t *testing.T) {
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": 123456789,
		"first_name": "Ann",
		"last_name": null,
		"auth_date": 1700000000,
		"hash": "abc"
	}`), &raw))

	data, err := TelegramAuthDataFromJSON(raw)
	require.NoError(t, err)

	assert.Equal(t, "123456789", data.ID())
	assert.Equal(t, "1700000000", data["auth_date"])
	assert.Equal(t, "Ann", data.DisplayName())
	_, hasLastName := data["last_name"]
	assert.False(t, hasLastName)
}
