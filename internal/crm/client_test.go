package crm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"RepAuthBot/internal/config"
	"RepAuthBot/internal/utils/logger/handlers/slogdiscard"
)

type memCache struct {
	mu      sync.Mutex
	token   string
	saves   int
	removes int
	err     error
}

func (c *memCache) AdminToken(context.Context) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", false, c.err
	}
	return c.token, c.token != "", nil
}

func (c *memCache) SaveAdminToken(_ context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.saves++
	return nil
}

func (c *memCache) RemoveAdminToken(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.removes++
	return nil
}

type fakeCRM struct {
	authorizeCalls atomic.Int32
	authStatus     int
	customer       map[string]any
	success        bool
}

func (f *fakeCRM) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /Authorize/CompanyId/42/3", func(w http.ResponseWriter, r *http.Request) {
		f.authorizeCalls.Add(1)
		if r.Header.Get("MakoUsername") != "svc" || r.Header.Get("MakoPassword") != "svc-pass" {
			t.Errorf("unexpected service credentials: %v", r.Header)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data":    map[string]string{"token": "admin-token"},
			"success": true,
		})
	})
	mux.HandleFunc("GET /Crm/Customers/Authenticate", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer admin-token" {
			t.Errorf("Authorization = %q", got)
		}
		if f.authStatus != 0 {
			w.WriteHeader(f.authStatus)
			return
		}
		ok := f.success &&
			r.Header.Get("CustomerUsername") == "alice" &&
			r.Header.Get("CustomerPassword") == "correctpass"
		body := map[string]any{"success": ok}
		if ok {
			body["data"] = f.customer
		} else {
			body["errorMessage"] = "Invalid username or password"
		}
		json.NewEncoder(w).Encode(body)
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeCRM) (*Client, *memCache) {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	cache := &memCache{}
	c := New(slogdiscard.NewDiscardLogger(), config.CrmConfig{
		BaseURL:      srv.URL,
		CompanyID:    "42",
		InstanceType: "3",
		Username:     "svc",
		Password:     "svc-pass",
		Timeout:      time.Second,
	}, cache)
	c.newToken = func() string { return "rep-token" }
	return c, cache
}

func activeCustomer() map[string]any {
	return map[string]any{
		"customerId":   7,
		"userName":     "alice",
		"firstName":    "Alice",
		"userCanLogIn": true,
	}
}

func TestRepToken(t *testing.T) {
	tests := []struct {
		name     string
		crm      *fakeCRM
		password string
		want     Outcome
	}{
		{
			name:     "valid credentials",
			crm:      &fakeCRM{success: true, customer: activeCustomer()},
			password: "correctpass",
			want:     OutcomeAuthenticated,
		},
		{
			name:     "wrong password",
			crm:      &fakeCRM{success: true, customer: activeCustomer()},
			password: "wrongpass",
			want:     OutcomeRejected,
		},
		{
			name: "account cannot log in",
			crm: &fakeCRM{success: true, customer: map[string]any{
				"customerId": 7, "userCanLogIn": false,
			}},
			password: "correctpass",
			want:     OutcomeRejected,
		},
		{
			name:     "client error from crm",
			crm:      &fakeCRM{authStatus: http.StatusNotFound},
			password: "correctpass",
			want:     OutcomeRejected,
		},
		{
			name:     "crm down",
			crm:      &fakeCRM{authStatus: http.StatusBadGateway},
			password: "correctpass",
			want:     OutcomeUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, tt.crm)
			res := c.RepToken(context.Background(), "alice", tt.password)
			if res.Outcome != tt.want {
				t.Fatalf("outcome = %s, want %s (reason %q)", res.Outcome, tt.want, res.Reason)
			}
			if res.OK() != (tt.want == OutcomeAuthenticated) {
				t.Errorf("OK() = %v", res.OK())
			}
			if res.OK() {
				if res.Token != "rep-token" {
					t.Errorf("token = %q, want rep-token", res.Token)
				}
				if res.Token == "admin-token" {
					t.Error("admin token leaked as rep token")
				}
				if res.Customer == nil || res.Customer.CustomerID != 7 {
					t.Errorf("customer = %+v", res.Customer)
				}
			}
		})
	}
}

func TestAdminTokenIsCached(t *testing.T) {
	f := &fakeCRM{success: true, customer: activeCustomer()}
	c, cache := newTestClient(t, f)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if res := c.RepToken(ctx, "alice", "correctpass"); !res.OK() {
			t.Fatalf("attempt %d: %s", i, res.Outcome)
		}
	}
	if n := f.authorizeCalls.Load(); n != 1 {
		t.Errorf("authorize calls = %d, want 1", n)
	}
	if cache.saves != 1 {
		t.Errorf("cache saves = %d, want 1", cache.saves)
	}
}

func TestUnauthorizedEvictsAdminToken(t *testing.T) {
	f := &fakeCRM{authStatus: http.StatusUnauthorized}
	c, cache := newTestClient(t, f)

	res := c.RepToken(context.Background(), "alice", "correctpass")
	if res.Outcome != OutcomeUnavailable {
		t.Fatalf("outcome = %s, want unavailable", res.Outcome)
	}
	if cache.removes != 1 || cache.token != "" {
		t.Errorf("admin token not evicted: removes=%d token=%q", cache.removes, cache.token)
	}
}

func TestCacheErrorFallsBackToFetch(t *testing.T) {
	f := &fakeCRM{success: true, customer: activeCustomer()}
	c, cache := newTestClient(t, f)
	cache.err = errors.New("redis down")

	token, err := c.AdminToken(context.Background())
	if err != nil {
		t.Fatalf("AdminToken: %v", err)
	}
	if token != "admin-token" {
		t.Errorf("token = %q", token)
	}
}

func TestMissingConfigurationIsUnavailable(t *testing.T) {
	c := New(slogdiscard.NewDiscardLogger(), config.CrmConfig{}, &memCache{})

	if _, err := c.FetchAdminToken(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
	if res := c.RepToken(context.Background(), "alice", "pw"); res.Outcome != OutcomeUnavailable {
		t.Fatalf("outcome = %s, want unavailable", res.Outcome)
	}
}
