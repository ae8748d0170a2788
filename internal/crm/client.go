package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"RepAuthBot/internal/config"
	"RepAuthBot/internal/models/domain"
	"RepAuthBot/internal/utils/logger/sl"

	"github.com/google/uuid"
)

var (
	ErrNotConfigured = errors.New("crm credentials are not configured")
	// ErrUnauthorized means the CRM refused the admin token itself.
	ErrUnauthorized = errors.New("crm rejected admin token")
)

// TokenCache keeps the shared admin token between requests.
type TokenCache interface {
	AdminToken(ctx context.Context) (string, bool, error)
	SaveAdminToken(ctx context.Context, token string) error
	RemoveAdminToken(ctx context.Context) error
}

// Client talks to the TeqTank CRM REST API.
type Client struct {
	cfg      config.CrmConfig
	http     *http.Client
	cache    TokenCache
	log      *slog.Logger
	newToken func() string
}

func New(logger *slog.Logger, cfg config.CrmConfig, cache TokenCache) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: timeout},
		cache:    cache,
		log:      logger.With(slog.String("component", "crm")),
		newToken: uuid.NewString,
	}
}

// envelope is the response wrapper used by every CRM endpoint.
type envelope[T any] struct {
	Data         T      `json:"data"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errorMessage"`
	ErrorCode    string `json:"errorCode"`
	Transaction  string `json:"transaction"`
	TotalRecords int    `json:"totalRecords"`
}

type authData struct {
	Token string `json:"token"`
}

func (c *Client) configured() bool {
	return c.cfg.BaseURL != "" && c.cfg.CompanyID != "" && c.cfg.Username != "" && c.cfg.Password != ""
}

// AdminToken returns the cached admin token, fetching a new one on a miss.
func (c *Client) AdminToken(ctx context.Context) (string, error) {
	op := "crm.AdminToken"
	log := c.log.With(slog.String("op", op))

	token, ok, err := c.cache.AdminToken(ctx)
	if err != nil {
		// Cache errors fall through to a fetch.
		log.Warn("admin token cache unavailable", sl.Err(err))
	}
	if ok && token != "" {
		return token, nil
	}

	token, err = c.FetchAdminToken(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := c.cache.SaveAdminToken(ctx, token); err != nil {
		log.Warn("cache admin token", sl.Err(err))
	}
	return token, nil
}

// FetchAdminToken requests a fresh admin token with the service credentials.
func (c *Client) FetchAdminToken(ctx context.Context) (string, error) {
	op := "crm.FetchAdminToken"
	log := c.log.With(slog.String("op", op))

	if !c.configured() {
		log.Error("missing CRM configuration",
			slog.Bool("has_base_url", c.cfg.BaseURL != ""),
			slog.Bool("has_company_id", c.cfg.CompanyID != ""),
			slog.Bool("has_username", c.cfg.Username != ""),
			slog.Bool("has_password", c.cfg.Password != ""),
		)
		return "", ErrNotConfigured
	}

	endpoint := fmt.Sprintf("%s/Authorize/CompanyId/%s/%s",
		c.cfg.BaseURL, url.PathEscape(c.cfg.CompanyID), url.PathEscape(c.cfg.InstanceType))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("accept", "text/plain")
	req.Header.Set("MakoUsername", c.cfg.Username)
	req.Header.Set("MakoPassword", c.cfg.Password)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: unexpected status: %s", op, resp.Status)
	}

	var env envelope[*authData]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return "", fmt.Errorf("%s: decode: %w", op, err)
	}
	log.Debug("admin token response",
		slog.Bool("success", env.Success),
		slog.Bool("has_token", env.Data != nil && env.Data.Token != ""),
		slog.String("error_message", env.ErrorMessage),
	)
	if !env.Success || env.Data == nil || env.Data.Token == "" {
		msg := env.ErrorMessage
		if msg == "" {
			msg = "no token in response"
		}
		return "", fmt.Errorf("%s: %s", op, msg)
	}
	return env.Data.Token, nil
}

// RepToken verifies a rep's credentials. It never returns an error: every
// failure is folded into the Result and logged here.
func (c *Client) RepToken(ctx context.Context, username, password string) Result {
	op := "crm.RepToken"
	log := c.log.With(slog.String("op", op), slog.String("username", username))

	adminToken, err := c.AdminToken(ctx)
	if err != nil {
		log.Error("failed to get admin token", sl.Err(err))
		return unavailable("admin token unavailable")
	}

	customer, err := c.authenticateCustomer(ctx, adminToken, username, password)
	switch {
	case errors.Is(err, ErrUnauthorized):
		log.Warn("admin token refused, evicting cache", sl.Err(err))
		if err := c.cache.RemoveAdminToken(ctx); err != nil {
			log.Error("evict admin token", sl.Err(err))
		}
		return unavailable("admin token refused")
	case err != nil:
		var rejected *rejectedError
		if errors.As(err, &rejected) {
			log.Info("authentication rejected", slog.String("reason", rejected.reason))
			return Result{Outcome: OutcomeRejected, Reason: rejected.reason}
		}
		log.Error("failed to authenticate customer", sl.Err(err))
		return unavailable("crm request failed")
	}

	log.Info("customer authenticated", slog.Int64("customer_id", customer.CustomerID))
	return Result{
		Outcome:  OutcomeAuthenticated,
		Token:    c.newToken(),
		Customer: customer,
	}
}

type rejectedError struct {
	reason string
}

func (e *rejectedError) Error() string {
	return "rejected: " + e.reason
}

func (c *Client) authenticateCustomer(ctx context.Context, adminToken, username, password string) (*domain.Customer, error) {
	op := "crm.authenticateCustomer"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/Crm/Customers/Authenticate", nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+adminToken)
	req.Header.Set("CustomerUsername", username)
	req.Header.Set("CustomerPassword", password)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%s: %s: %w", op, resp.Status, ErrUnauthorized)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%s: unexpected status: %s", op, resp.Status)
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Debug("customer authenticate refused",
			slog.String("op", op), slog.String("status", resp.Status), slog.String("body", string(body)))
		return nil, &rejectedError{reason: resp.Status}
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("%s: unexpected status: %s", op, resp.Status)
	}

	var env envelope[*domain.Customer]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}
	if !env.Success || env.Data == nil {
		reason := env.ErrorMessage
		if reason == "" {
			reason = "no customer data in response"
		}
		return nil, &rejectedError{reason: reason}
	}
	if !env.Data.UserCanLogIn {
		return nil, &rejectedError{reason: "customer account cannot log in"}
	}
	return env.Data, nil
}
