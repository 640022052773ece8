package ledger

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/chainpkg/chainpkg/internal/branding"
	"github.com/chainpkg/chainpkg/internal/errs"
	"github.com/chainpkg/chainpkg/internal/logging"
)

// Defaults for Options fields left zero.
const (
	DefaultTimeout        = 30 * time.Second
	DefaultConfirmTimeout = 2 * time.Minute
	DefaultPollInterval   = 500 * time.Millisecond
	DefaultMaxPoll        = 5 * time.Second
	DefaultRetries        = 2
)

// Options configures a Client.
type Options struct {
	RPCURL    string
	FaucetURL string

	Timeout         time.Duration // per request
	ConfirmTimeout  time.Duration // upper bound for WaitForTransaction
	PollInterval    time.Duration // first poll delay, doubled up to MaxPollInterval
	MaxPollInterval time.Duration
	Retries         int // transport retries per request; negative disables

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to one node.
type Client struct {
	http      *resty.Client
	faucetURL string
	log       *zap.Logger

	confirmTimeout time.Duration
	pollInterval   time.Duration
	maxPoll        time.Duration
}

// nodeError is the error body nodes return with non-2xx statuses.
type nodeError struct {
	Message   string `json:"message"`
	ErrorCode string `json:"error_code"`
	VMStatus  string `json:"vm_error_code"`
}

// New builds a client for opts.RPCURL.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = DefaultConfirmTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxPollInterval <= 0 {
		opts.MaxPollInterval = DefaultMaxPoll
	}
	if opts.Retries == 0 {
		opts.Retries = DefaultRetries
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}

	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(strings.TrimRight(opts.RPCURL, "/")).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(250 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", branding.UserAgent())
	// Retry only when the node could not be reached or is overloaded.
	rc.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}
		return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() == http.StatusServiceUnavailable
	})

	return &Client{
		http:           rc,
		faucetURL:      strings.TrimRight(opts.FaucetURL, "/"),
		log:            logging.OrNop(opts.Logger),
		confirmTimeout: opts.ConfirmTimeout,
		pollInterval:   opts.PollInterval,
		maxPoll:        opts.MaxPollInterval,
	}
}

// BaseURL returns the node URL.
func (c *Client) BaseURL() string { return c.http.BaseURL }

// Ping checks that the node answers its index endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, "ledger.ping", c.http.R().SetContext(ctx), http.MethodGet, "/v1")
	return err
}

// do executes req and maps failures into the error taxonomy. The response is
// returned for 2xx statuses only.
func (c *Client) do(ctx context.Context, op string, req *resty.Request, method, path string) (*resty.Response, error) {
	var ne nodeError
	req.SetError(&ne)
	resp, err := req.Execute(method, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.Wrap(errs.KindNetwork, ctx.Err(), "%s %s cancelled", method, path).WithOp(op)
		}
		return nil, errs.Wrap(errs.KindNetwork, err, "node %s unreachable", c.http.BaseURL).WithOp(op)
	}
	if resp.IsError() {
		msg := ne.Message
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		e := errs.New(errs.KindBlockchain, "node returned %d: %s", resp.StatusCode(), msg).
			WithOp(op).
			With("status", resp.StatusCode())
		if ne.ErrorCode != "" {
			e.With("error_code", ne.ErrorCode)
		}
		return resp, e
	}
	c.log.Debug("ledger call",
		zap.String("op", op),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("elapsed", resp.Time()))
	return resp, nil
}

func decodeError(op string, err error, what string) error {
	return errs.Wrap(errs.KindBlockchain, err, "malformed %s response", what).WithOp(op)
}

func statusOf(err error) int {
	if st, ok := errs.FieldsOf(err)["status"].(int); ok {
		return st
	}
	return 0
}
