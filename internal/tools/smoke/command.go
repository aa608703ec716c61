package smoke

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/allresumeservices/client-intake/internal/config"
	"github.com/allresumeservices/client-intake/internal/security"
	"github.com/allresumeservices/client-intake/internal/tools/common"
	"github.com/allresumeservices/client-intake/internal/tools/ui"
)

type options struct {
	envFile string
	ci      bool
	timeout time.Duration
	baseURL string
	keep    bool
}

func NewRootCommand() *cobra.Command {
	opts := options{}
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Exercise a running intake API end to end",
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "optional env file")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "print a JSON result instead of the interactive view")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall timeout")
	cmd.PersistentFlags().StringVar(&opts.baseURL, "base-url", "http://localhost:8080", "API base URL")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Check readiness, issue a token and round-trip a draft",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := run(opts, "smoke run", "run", func(ctx context.Context) ([]string, error) {
				if err := common.LoadEnvFile(opts.envFile); err != nil {
					return nil, err
				}
				cfg, err := config.Load()
				if err != nil {
					return nil, fmt.Errorf("load config: %w", err)
				}
				return runSmoke(ctx, opts, cfg)
			})
			return err
		},
	}
	runCmd.Flags().BoolVar(&opts.keep, "keep", false, "leave the smoke draft in place")
	cmd.AddCommand(runCmd)
	return cmd
}

type client struct {
	http    *http.Client
	baseURL *url.URL
	ctx     context.Context
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func runSmoke(ctx context.Context, opts options, cfg *config.Config) ([]string, error) {
	base, err := url.Parse(strings.TrimRight(opts.baseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", opts.baseURL)
	}
	ctx, traceID, err := withRemoteTrace(ctx)
	if err != nil {
		return nil, err
	}
	c := &client{http: &http.Client{Timeout: 10 * time.Second}, baseURL: base, ctx: ctx}
	details := []string{"trace_id: " + traceID}

	if _, err := c.do(http.MethodGet, "/health/ready", "", nil, http.StatusOK, nil); err != nil {
		return details, fmt.Errorf("readiness: %w", err)
	}
	details = append(details, "ready: ok")

	jwt, err := security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTSecret).
		SignAccessToken("intakectl-smoke", []string{security.RolePayments}, 5*time.Minute)
	if err != nil {
		return details, fmt.Errorf("sign access token: %w", err)
	}
	var issued struct {
		Token string `json:"token"`
	}
	orderRef := fmt.Sprintf("SMOKE-%d", time.Now().UnixNano())
	if _, err := c.do(http.MethodPost, "/api/v1/internal/intake/tokens", jwt, map[string]string{"order_reference": orderRef}, http.StatusCreated, &issued); err != nil {
		return details, fmt.Errorf("issue token: %w", err)
	}
	details = append(details, "token issued for "+orderRef)

	draftPath := "/api/v1/intake/drafts/" + url.PathEscape(issued.Token)
	save := map[string]any{
		"email":           "smoke@example.com",
		"first_name":      "Smoke",
		"last_name":       "Check",
		"order_reference": orderRef,
		"target_roles":    "Smoke Tester",
	}
	if _, err := c.do(http.MethodPut, draftPath, "", save, http.StatusOK, nil); err != nil {
		return details, fmt.Errorf("save draft: %w", err)
	}
	var loaded struct {
		FirstName   string `json:"first_name"`
		TargetRoles string `json:"target_roles"`
	}
	if _, err := c.do(http.MethodGet, draftPath, "", nil, http.StatusOK, &loaded); err != nil {
		return details, fmt.Errorf("load draft: %w", err)
	}
	if loaded.FirstName != "Smoke" || loaded.TargetRoles != "Smoke Tester" {
		return details, fmt.Errorf("loaded draft does not match saved draft: %+v", loaded)
	}
	details = append(details, "draft round trip: ok")

	if opts.keep {
		return append(details, "draft kept"), nil
	}
	if _, err := c.do(http.MethodDelete, draftPath, "", nil, http.StatusNoContent, nil); err != nil {
		return details, fmt.Errorf("delete draft: %w", err)
	}
	return append(details, "draft deleted"), nil
}

// withRemoteTrace attaches a sampled remote span context so every request
// carries the same traceparent.
func withRemoteTrace(ctx context.Context) (context.Context, string, error) {
	var tid trace.TraceID
	var sid trace.SpanID
	if _, err := rand.Read(tid[:]); err != nil {
		return ctx, "", fmt.Errorf("generate trace id: %w", err)
	}
	if _, err := rand.Read(sid[:]); err != nil {
		return ctx, "", fmt.Errorf("generate span id: %w", err)
	}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	return trace.ContextWithRemoteSpanContext(ctx, sc), tid.String(), nil
}

func (c *client) do(method, path, bearer string, body any, want int, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(c.ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	propagation.TraceContext{}.Inject(c.ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, err
	}
	if resp.StatusCode != want {
		var env envelope
		if json.Unmarshal(raw, &env) == nil && env.Error != nil {
			return resp.StatusCode, fmt.Errorf("%s %s: status %d %s: %s", method, path, resp.StatusCode, env.Error.Code, env.Error.Message)
		}
		return resp.StatusCode, fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil || len(raw) == 0 {
		return resp.StatusCode, nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return resp.StatusCode, fmt.Errorf("decode envelope: %w", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode data: %w", err)
	}
	return resp.StatusCode, nil
}

func run(opts options, title, op string, fn func(ctx context.Context) ([]string, error)) ([]string, error) {
	timeout := opts.timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if opts.ci {
		details, err := fn(ctx)
		common.PrintCIResult(err == nil, title, details, err)
		return details, err
	}
	return ui.Run(ctx, title+" ("+op+")", fn)
}
