// Package httpupstream implements the miner's side of the upstream
// pool/wallet HTTP protocol: polling for mining info and submitting
// nonces. Its request/response plumbing (User-Agent header, draining and
// closing response bodies before reuse, wrapping transport failures with
// errors.AddContext) follows node/api/client/client.go's Client type.
package httpupstream

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"gitlab.com/NebulousLabs/errors"

	"github.com/signum-network/gopoc-miner/build"
)

// UserAgent identifies this miner to the upstream, mirroring the source's
// User-Agent convention for its own HTTP client.
const UserAgent = "gopoc-miner"

// Transport is the interface the Submitter and Puzzle Source depend
// on for talking to the upstream; a *Client is the production
// implementation, and tests substitute a fake.
type Transport interface {
	GetMiningInfo(ctx context.Context) (MiningInfo, error)
	SubmitNonce(ctx context.Context, req SubmitNonceRequest) (SubmitNonceResponse, error)
}

// MiningInfo is the decoded response of getMiningInfo.
type MiningInfo struct {
	Height              uint64
	BaseTarget          uint64
	GenerationSignature [32]byte
	TargetDeadline      uint64
}

// SubmitNonceRequest carries everything needed to submit one nonce.
type SubmitNonceRequest struct {
	AccountID    uint64
	Nonce        uint64
	Deadline     uint64
	BlockHeight  uint64
	SecretPhrase string
	CapacityGB   uint64
	Hostname     string
}

// SubmitNonceResponse is the decoded response of submitNonce.
type SubmitNonceResponse struct {
	Deadline uint64
	Result   string
	Accepted bool
}

// wireMiningInfo mirrors the upstream's JSON shape for getMiningInfo.
type wireMiningInfo struct {
	Height              string `json:"height"`
	BaseTarget          string `json:"baseTarget"`
	GenerationSignature string `json:"generationSignature"`
	TargetDeadline      string `json:"targetDeadline"`
}

// wireSubmitResult mirrors the upstream's JSON shape for submitNonce.
type wireSubmitResult struct {
	Deadline         string `json:"deadline"`
	Result           string `json:"result"`
	ErrorDescription string `json:"errorDescription"`
}

// Client talks to a single upstream base URL over HTTP.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient returns a Client with the given base URL and request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) newRequest(ctx context.Context, method, resource string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+resource, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent+"/"+build.Version)
	return req, nil
}

// drainAndClose reads rc until EOF and closes it so the underlying
// connection can be reused, mirroring the source's drainAndClose helper.
func drainAndClose(rc io.ReadCloser) {
	io.Copy(ioutil.Discard, rc)
	rc.Close()
}

// GetMiningInfo polls GET /burst?requestType=getMiningInfo.
func (c *Client) GetMiningInfo(ctx context.Context) (MiningInfo, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/burst?requestType=getMiningInfo")
	if err != nil {
		return MiningInfo{}, err
	}
	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return MiningInfo{}, errors.AddContext(err, "getMiningInfo request failed")
	}
	defer drainAndClose(res.Body)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return MiningInfo{}, fmt.Errorf("getMiningInfo returned status %d", res.StatusCode)
	}

	var wire wireMiningInfo
	if err := json.NewDecoder(res.Body).Decode(&wire); err != nil {
		return MiningInfo{}, errors.AddContext(err, "could not decode getMiningInfo response")
	}
	return decodeMiningInfo(wire)
}

func decodeMiningInfo(wire wireMiningInfo) (MiningInfo, error) {
	height, err := strconv.ParseUint(wire.Height, 10, 64)
	if err != nil {
		return MiningInfo{}, errors.AddContext(err, "malformed height")
	}
	baseTarget, err := strconv.ParseUint(wire.BaseTarget, 10, 64)
	if err != nil {
		return MiningInfo{}, errors.AddContext(err, "malformed baseTarget")
	}
	gensigBytes, err := hex.DecodeString(wire.GenerationSignature)
	if err != nil || len(gensigBytes) != 32 {
		return MiningInfo{}, errors.New("malformed generationSignature")
	}
	var gensig [32]byte
	copy(gensig[:], gensigBytes)

	var targetDeadline uint64
	if wire.TargetDeadline != "" {
		targetDeadline, err = strconv.ParseUint(wire.TargetDeadline, 10, 64)
		if err != nil {
			return MiningInfo{}, errors.AddContext(err, "malformed targetDeadline")
		}
	}

	return MiningInfo{
		Height:              height,
		BaseTarget:          baseTarget,
		GenerationSignature: gensig,
		TargetDeadline:      targetDeadline,
	}, nil
}

// SubmitNonce issues POST /burst?requestType=submitNonce.
func (c *Client) SubmitNonce(ctx context.Context, sr SubmitNonceRequest) (SubmitNonceResponse, error) {
	values := url.Values{}
	values.Set("requestType", "submitNonce")
	values.Set("accountId", strconv.FormatUint(sr.AccountID, 10))
	values.Set("nonce", strconv.FormatUint(sr.Nonce, 10))
	values.Set("deadline", strconv.FormatUint(sr.Deadline, 10))
	values.Set("blockheight", strconv.FormatUint(sr.BlockHeight, 10))
	values.Set("secretPhrase", sr.SecretPhrase)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/burst?"+values.Encode(), bytes.NewReader(nil))
	if err != nil {
		return SubmitNonceResponse{}, err
	}
	req.Header.Set("User-Agent", UserAgent+"/"+build.Version)
	req.Header.Set("X-Capacity", strconv.FormatUint(sr.CapacityGB, 10))
	req.Header.Set("X-Miner", sr.Hostname)
	req.Header.Set("X-Account", strconv.FormatUint(sr.AccountID, 10))

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return SubmitNonceResponse{}, errors.AddContext(err, "submitNonce request failed")
	}
	defer drainAndClose(res.Body)

	var wire wireSubmitResult
	if err := json.NewDecoder(res.Body).Decode(&wire); err != nil {
		return SubmitNonceResponse{}, errors.AddContext(err, "could not decode submitNonce response")
	}
	if wire.ErrorDescription != "" {
		return SubmitNonceResponse{Result: wire.ErrorDescription}, errors.New(wire.ErrorDescription)
	}

	var deadline uint64
	if wire.Deadline != "" {
		deadline, _ = strconv.ParseUint(wire.Deadline, 10, 64)
	}
	return SubmitNonceResponse{Deadline: deadline, Result: wire.Result, Accepted: true}, nil
}
