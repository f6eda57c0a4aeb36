package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// Service groups the agent's secrets in the OS keychain.
const Service = "talentflow"

// Well-known keychain accounts, looked up when the config leaves a credential empty.
const (
	AIAPIKey         = "ai_api_key"
	MeetingAPIToken  = "meeting_api_token"
	OutreachAPIToken = "outreach_api_token"
	SlackWebhookURL  = "slack_webhook_url"
	SMTPPassword     = "smtp_password"
	JWTSecret        = "jwt_secret"
)

// Accounts lists the well-known accounts for `secrets set` completion and help.
var Accounts = []string{AIAPIKey, MeetingAPIToken, OutreachAPIToken, SlackWebhookURL, SMTPPassword, JWTSecret}

// Resolve returns value when it is set, otherwise the keychain entry for
// account. A missing entry resolves to "" without error.
func Resolve(value, account string) (string, error) {
	if strings.TrimSpace(value) != "" {
		return value, nil
	}
	return Lookup(account)
}

// Lookup reads account from the keychain. A missing entry is "" without error.
func Lookup(account string) (string, error) {
	if strings.TrimSpace(account) == "" {
		return "", nil
	}
	v, err := keyring.Get(Service, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading keychain account %q: %w", account, err)
	}
	return strings.TrimSpace(v), nil
}

// Set stores value under account.
func Set(account, value string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keychain account name is empty")
	}
	if strings.TrimSpace(value) == "" {
		return errors.New("secret value is empty")
	}
	if err := keyring.Set(Service, account, value); err != nil {
		return fmt.Errorf("writing keychain account %q: %w", account, err)
	}
	return nil
}

// Delete removes account from the keychain.
func Delete(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keychain account name is empty")
	}
	return keyring.Delete(Service, account)
}
