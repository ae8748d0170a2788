// Package texts holds every user-facing bot message.
//
// Defaults are embedded from messages.yml; a deployment can override any subset
// of them with its own YAML file.
package texts

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed messages.yml
var defaultMessages []byte

type Texts struct {
	Welcome         string `yaml:"welcome"`
	LoginButton     string `yaml:"login_button"`
	HelpButton      string `yaml:"help_button"`
	AlreadyLoggedIn string `yaml:"already_logged_in"`
	AskUsername     string `yaml:"ask_username"`
	AskPassword     string `yaml:"ask_password"`
	LoginFormat     string `yaml:"login_format"`
	SessionExpired  string `yaml:"session_expired"`
	AuthFailed      string `yaml:"auth_failed"`
	AuthUnavailable string `yaml:"auth_unavailable"`
	LoginSuccess    string `yaml:"login_success"`
	LogoutSuccess   string `yaml:"logout_success"`
	UnknownCommand  string `yaml:"unknown_command"`
	Error           string `yaml:"error"`
	RequestError    string `yaml:"request_error"`
	// Help is sent as HTML.
	Help     string   `yaml:"help"`
	Commands Commands `yaml:"commands"`
}

// Commands are the descriptions shown in the Telegram command menu.
type Commands struct {
	Start  string `yaml:"start"`
	Login  string `yaml:"login"`
	Logout string `yaml:"logout"`
	Help   string `yaml:"help"`
}

// Default returns the embedded catalog.
func Default() *Texts {
	t := &Texts{}
	if err := yaml.Unmarshal(defaultMessages, t); err != nil {
		panic("texts: embedded messages.yml is invalid: " + err.Error())
	}
	return t
}

// Load returns the embedded catalog with the keys found in path applied on top.
// An empty path returns the defaults.
func Load(path string) (*Texts, error) {
	op := "texts.Load"
	t := Default()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("%s: parse %s: %w", op, path, err)
	}
	if err := t.validate(); err != nil {
		return nil, fmt.Errorf("%s: %s: %w", op, path, err)
	}
	return t, nil
}

func (t *Texts) validate() error {
	var missing []string
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	check("welcome", t.Welcome)
	check("login_button", t.LoginButton)
	check("help_button", t.HelpButton)
	check("already_logged_in", t.AlreadyLoggedIn)
	check("ask_username", t.AskUsername)
	check("ask_password", t.AskPassword)
	check("login_format", t.LoginFormat)
	check("session_expired", t.SessionExpired)
	check("auth_failed", t.AuthFailed)
	check("auth_unavailable", t.AuthUnavailable)
	check("login_success", t.LoginSuccess)
	check("logout_success", t.LogoutSuccess)
	check("unknown_command", t.UnknownCommand)
	check("error", t.Error)
	check("request_error", t.RequestError)
	check("help", t.Help)
	if len(missing) > 0 {
		return errors.New("empty messages: " + strings.Join(missing, ", "))
	}
	return nil
}
