package jira

import (
    "context"
    "crypto/tls"
    "crypto/x509"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "os"
    "strings"
    "time"

    "github.com/larkinmaxim/JiraIssueLogger/internal/config"
    "github.com/rs/zerolog"
)

type Client struct {
    baseURL string
    token   string
    basic   string
    user    string
    pass    string
    http    *http.Client
    log     zerolog.Logger
    apiVer  string
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
    return &Client{
        baseURL: cfg.JiraBaseURL,
        token:   cfg.JiraPAT,
        basic:   getenvBasic(),
        user:    cfg.JiraUsername,
        pass:    cfg.JiraPassword,
        http:    newHTTPClient(cfg, log),
        log:     log,
        apiVer:  cfg.JiraAPIVersion,
    }
}

// getenvBasic reads JIRA_BASIC_AUTH from environment if present (format: user:pass base64), optional
func getenvBasic() string {
    v := ""
    if s := strings.TrimSpace(os.Getenv("JIRA_BASIC_AUTH")); s != "" { v = s }
    return v
}

// newHTTPClient honors the deployment's TLS setup: corporate proxies that
// re-sign traffic need a custom CA bundle, local testing may skip
// verification entirely.
func newHTTPClient(cfg config.Config, log zerolog.Logger) *http.Client {
    cli := &http.Client{Timeout: cfg.HTTPTimeout}
    if cfg.CABundle == "" && !cfg.InsecureSkipVerify { return cli }
    tlsCfg := &tls.Config{}
    if cfg.InsecureSkipVerify {
        tlsCfg.InsecureSkipVerify = true
        log.Warn().Msg("jira: TLS verification disabled")
    } else if pem, err := os.ReadFile(cfg.CABundle); err == nil {
        pool, perr := x509.SystemCertPool()
        if perr != nil || pool == nil { pool = x509.NewCertPool() }
        if pool.AppendCertsFromPEM(pem) {
            tlsCfg.RootCAs = pool
            log.Info().Str("path", cfg.CABundle).Msg("jira: using CA bundle")
        } else {
            log.Error().Str("path", cfg.CABundle).Msg("jira: CA bundle has no valid PEM certificates")
        }
    } else {
        log.Error().Err(err).Str("path", cfg.CABundle).Msg("jira: cannot read CA bundle")
    }
    cli.Transport = &http.Transport{TLSClientConfig: tlsCfg}
    return cli
}

func (c *Client) apiURL(path string, q url.Values) string {
    base := strings.TrimRight(c.baseURL, "/")
    if !strings.HasPrefix(path, "/") { path = "/" + path }
    u := base + path
    if len(q) > 0 { u = u + "?" + q.Encode() }
    return u
}

func (c *Client) doJSON(ctx context.Context, method, u string, body any) (map[string]any, error) {
    if c.baseURL == "" { return nil, errors.New("jira: empty baseURL") }
    var payload []byte
    if body != nil {
        b, err := json.Marshal(body)
        if err != nil { return nil, err }
        payload = b
    }
    var lastErr error
    for attempt := 0; attempt < 3; attempt++ {
        var r io.Reader
        if payload != nil { r = strings.NewReader(string(payload)) }
        req, err := http.NewRequestWithContext(ctx, method, u, r)
        if err != nil { return nil, err }
        if payload != nil { req.Header.Set("Content-Type", "application/json") }
        c.auth(req)
        resp, err := c.http.Do(req)
        if err != nil { lastErr = err } else {
            if resp.StatusCode >= 300 {
                b, _ := io.ReadAll(resp.Body)
                resp.Body.Close()
                // retry on 429/5xx
                if resp.StatusCode == 429 || resp.StatusCode >= 500 {
                    lastErr = fmt.Errorf("jira api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
                } else {
                    return nil, fmt.Errorf("jira api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
                }
            } else {
                var out map[string]any
                err := json.NewDecoder(resp.Body).Decode(&out)
                resp.Body.Close()
                if err != nil { return nil, err }
                return out, nil
            }
        }
        // backoff between attempts; the last failure returns immediately
        if attempt < 2 {
            time.Sleep(time.Duration(300*(1<<attempt)) * time.Millisecond)
        }
    }
    return nil, lastErr
}

func (c *Client) auth(req *http.Request) {
    if c.token != "" {
        req.Header.Set("Authorization", "Bearer "+c.token)
    } else if c.user != "" && c.pass != "" {
        req.SetBasicAuth(c.user, c.pass)
    } else if c.basic != "" {
        req.Header.Set("Authorization", "Basic "+c.basic)
    }
}

// Issue fetches a single issue with full fields and optional changelog via expand
func (c *Client) Issue(ctx context.Context, key string, expandChangelog bool) (map[string]any, error) {
    if key == "" { return nil, errors.New("jira: empty issue key") }
    q := url.Values{}
    q.Set("fields", "*all")
    if expandChangelog {
        q.Set("expand", "changelog")
    }
    path := "/rest/api/3/issue/" + url.PathEscape(key)
    if c.apiVer == "2" { path = "/rest/api/2/issue/" + url.PathEscape(key) }
    u := c.apiURL(path, q)
    return c.doJSON(ctx, http.MethodGet, u, nil)
}

// Search runs a JQL query; fields limits the response to what the caller consumes.
func (c *Client) Search(ctx context.Context, jql string, fields []string, startAt, max int) (map[string]any, error) {
    if jql == "" { return nil, errors.New("jira: empty jql") }
    if c.apiVer == "2" {
        q := url.Values{}
        q.Set("jql", jql)
        if startAt > 0 { q.Set("startAt", fmt.Sprint(startAt)) }
        if max > 0 { q.Set("maxResults", fmt.Sprint(max)) }
        if len(fields) > 0 { q.Set("fields", strings.Join(fields, ",")) } else { q.Set("fields", "*all") }
        u := c.apiURL("/rest/api/2/search", q)
        return c.doJSON(ctx, http.MethodGet, u, nil)
    }
    // default to v3
    body := map[string]any{"jql": jql, "startAt": startAt, "maxResults": max}
    if len(fields) > 0 { body["fields"] = fields }
    u := c.apiURL("/rest/api/3/search", nil)
    return c.doJSON(ctx, http.MethodPost, u, body)
}

// Changelog pages through the dedicated changelog endpoint. Used when the
// expanded changelog on the issue payload is truncated.
func (c *Client) Changelog(ctx context.Context, key string, startAt, max int) (map[string]any, error) {
    if key == "" { return nil, errors.New("jira: empty issue key") }
    q := url.Values{}
    if startAt > 0 { q.Set("startAt", fmt.Sprint(startAt)) }
    if max > 0 { q.Set("maxResults", fmt.Sprint(max)) }
    path := "/rest/api/3/issue/" + url.PathEscape(key) + "/changelog"
    if c.apiVer == "2" { path = "/rest/api/2/issue/" + url.PathEscape(key) + "/changelog" }
    u := c.apiURL(path, q)
    return c.doJSON(ctx, http.MethodGet, u, nil)
}

// Fields lists all fields (for discovering customfield ids)
func (c *Client) Fields(ctx context.Context) ([]map[string]any, error) {
    path := "/rest/api/3/field"
    if c.apiVer == "2" { path = "/rest/api/2/field" }
    u := c.apiURL(path, nil)
    // Note: this endpoint returns an array; adapt doJSON by manual request
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
    if err != nil { return nil, err }
    c.auth(req)
    resp, err := c.http.Do(req)
    if err != nil { return nil, err }
    defer resp.Body.Close()
    if resp.StatusCode >= 300 {
        b, _ := io.ReadAll(resp.Body)
        return nil, fmt.Errorf("jira api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
    }
    var out []map[string]any
    if err := json.NewDecoder(resp.Body).Decode(&out); err != nil { return nil, err }
    return out, nil
}
