// Package pinata stores bundles on IPFS through the Pinata pinning API.
package pinata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/chainpkg/chainpkg/internal/logging"
	"github.com/chainpkg/chainpkg/internal/storage"
)

// Name is the provider name in configuration.
const Name = "pinata"

// Default endpoints.
const (
	DefaultAPIURL     = "https://api.pinata.cloud"
	DefaultGatewayURL = "https://gateway.pinata.cloud"
)

// Config holds endpoints and credentials. JWT wins over the key pair.
type Config struct {
	APIURL     string
	GatewayURL string
	APIKey     string
	Secret     string
	JWT        string

	Timeout    time.Duration // per attempt, default 2m
	RetryMax   int           // default 3; negative disables retries
	HTTPClient *http.Client  // optional base client (tests)
	Logger     *zap.Logger
}

// Provider implements storage.Provider against Pinata.
type Provider struct {
	cfg    Config
	client *retryablehttp.Client
}

// ErrNoCredentials is returned by New when neither a JWT nor a key pair is set.
var ErrNoCredentials = errors.New("pinata credentials are not configured (set PINATA_JWT or PINATA_API_KEY and PINATA_SECRET_API_KEY)")

// New returns a Pinata provider.
func New(cfg Config) (*Provider, error) {
	if cfg.JWT == "" && (cfg.APIKey == "" || cfg.Secret == "") {
		return nil, ErrNoCredentials
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.GatewayURL == "" {
		cfg.GatewayURL = DefaultGatewayURL
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.GatewayURL = strings.TrimRight(cfg.GatewayURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}

	rc := retryablehttp.NewClient()
	switch {
	case cfg.RetryMax < 0:
		rc.RetryMax = 0
	case cfg.RetryMax == 0:
		rc.RetryMax = 3
	default:
		rc.RetryMax = cfg.RetryMax
	}
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 10 * time.Second
	if cfg.HTTPClient != nil {
		hc := *cfg.HTTPClient
		rc.HTTPClient = &hc
	}
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = leveled{logging.OrNop(cfg.Logger).Named("pinata").Sugar()}
	// Hand the final response back instead of a generic "giving up" error so
	// callers can report the status.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Provider{cfg: cfg, client: rc}, nil
}

// Name implements storage.Provider.
func (p *Provider) Name() string { return Name }

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

// Put implements storage.Provider with pinning/pinFileToIPFS.
func (p *Provider) Put(ctx context.Context, path string, meta storage.PinMetadata) (*storage.Pin, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	metaJSON, err := json.Marshal(struct {
		Name      string            `json:"name,omitempty"`
		KeyValues map[string]string `json:"keyvalues,omitempty"`
	}{meta.Name, meta.KeyValues})
	if err != nil {
		return nil, err
	}

	boundary := strings.ReplaceAll(uuid.NewString(), "-", "")
	body := func() (io.Reader, error) {
		pr, pw := io.Pipe()
		go func() {
			pw.CloseWithError(writeMultipart(pw, boundary, path, metaJSON))
		}()
		return pr, nil
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, p.cfg.APIURL+"/pinning/pinFileToIPFS", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)
	p.authorize(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("pin", resp)
	}

	var pr pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decoding pin response: %w", err)
	}
	if pr.IpfsHash == "" {
		return nil, errors.New("pin response has no IpfsHash")
	}
	pin := &storage.Pin{ContentAddress: pr.IpfsHash, Size: pr.PinSize}
	if pin.Size == 0 {
		pin.Size = info.Size()
	}
	if ts, err := time.Parse(time.RFC3339, pr.Timestamp); err == nil {
		pin.Timestamp = ts
	}
	return pin, nil
}

func writeMultipart(w io.Writer, boundary, path string, metaJSON []byte) error {
	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(boundary); err != nil {
		return err
	}
	if err := mw.WriteField("pinataMetadata", string(metaJSON)); err != nil {
		return err
	}
	if err := mw.WriteField("pinataOptions", `{"cidVersion":1}`); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(part, f); err != nil {
		return err
	}
	return mw.Close()
}

// Get implements storage.Provider through the gateway.
func (p *Provider) Get(ctx context.Context, addr string, w io.Writer) (int64, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, p.cfg.GatewayURL+"/ipfs/"+addr, nil)
	if err != nil {
		return 0, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, storage.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return 0, statusError("gateway download", resp)
	}
	return io.Copy(w, resp.Body)
}

// Ping implements storage.Provider with data/testAuthentication.
func (p *Provider) Ping(ctx context.Context) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, p.cfg.APIURL+"/data/testAuthentication", nil)
	if err != nil {
		return err
	}
	p.authorize(req)
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError("authentication test", resp)
	}
	return nil
}

func (p *Provider) authorize(req *retryablehttp.Request) {
	if p.cfg.JWT != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.JWT)
		return
	}
	req.Header.Set("pinata_api_key", p.cfg.APIKey)
	req.Header.Set("pinata_secret_api_key", p.cfg.Secret)
}

func statusError(what string, resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	text := strings.TrimSpace(string(msg))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return fmt.Errorf("%s failed with status %d: %s", what, resp.StatusCode, text)
}

// leveled adapts zap to retryablehttp.LeveledLogger.
type leveled struct{ s *zap.SugaredLogger }

func (l leveled) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveled) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l leveled) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveled) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
