package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "vesper/pkg/errors"
)

// TelegramAuthData is the payload of the Telegram login widget, every value in
// its string form as it enters the data-check string.
type TelegramAuthData map[string]string

// TelegramAuthDataFromJSON flattens the widget payload. Numbers keep their
// literal text so the data-check string matches what Telegram signed.
func TelegramAuthDataFromJSON(raw map[string]json.RawMessage) (TelegramAuthData, error) {
	data := make(TelegramAuthData, len(raw))
	for key, value := range raw {
		text := strings.TrimSpace(string(value))
		if text == "null" {
			continue
		}
		if strings.HasPrefix(text, `"`) {
			var s string
			if err := json.Unmarshal(value, &s); err != nil {
				return nil, apperrors.BadRequest("invalid auth_data field " + key)
			}
			text = s
		}
		data[key] = text
	}
	return data, nil
}

func (d TelegramAuthData) ID() string { return d["id"] }

// DataCheckString joins every field except hash as sorted key=value lines.
func (d TelegramAuthData) DataCheckString() string {
	keys := make([]string, 0, len(d))
	for k := range d {
		if k != "hash" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = k + "=" + d[k]
	}
	return strings.Join(lines, "\n")
}

func (d TelegramAuthData) DisplayName() string {
	return strings.TrimSpace(d["first_name"] + " " + d["last_name"])
}

// SignTelegramAuthData computes the hash Telegram attaches to the payload.
func SignTelegramAuthData(d TelegramAuthData, botToken string) string {
	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(d.DataCheckString()))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyTelegramAuthData checks the payload signature and its age.
func VerifyTelegramAuthData(d TelegramAuthData, botToken string, maxAge time.Duration, now time.Time) error {
	if botToken == "" {
		return fmt.Errorf("telegram bot token not configured")
	}

	got, err := hex.DecodeString(d["hash"])
	if err != nil || len(got) == 0 {
		return fmt.Errorf("%w: missing hash", apperrors.ErrTelegramAuthFailed)
	}
	want, _ := hex.DecodeString(SignTelegramAuthData(d, botToken))
	if !hmac.Equal(got, want) {
		return fmt.Errorf("%w: data integrity check failed", apperrors.ErrTelegramAuthFailed)
	}

	authDate, err := strconv.ParseInt(d["auth_date"], 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid auth_date", apperrors.ErrTelegramAuthFailed)
	}
	if now.Sub(time.Unix(authDate, 0)) > maxAge {
		return fmt.Errorf("%w: authentication data expired", apperrors.ErrTelegramAuthFailed)
	}

	if d.ID() == "" {
		return fmt.Errorf("%w: missing id", apperrors.ErrTelegramAuthFailed)
	}
	return nil
}
