package mpc

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"ShadowTrade/internal/domain/models"
	"ShadowTrade/internal/domain/service"
	xhttp "ShadowTrade/pkg/http"
)

// SubmitResponse is the body returned by POST /mpc/computations.
type SubmitResponse struct {
	ID string `json:"id"`
}

// HTTPNetwork speaks the submit/poll contract over HTTP+JSON.
type HTTPNetwork struct {
	baseURL string
	client  *xhttp.Client
}

// NewHTTPNetwork builds a client for the network gateway at baseURL.
func NewHTTPNetwork(baseURL string, timeout time.Duration, opts ...xhttp.ClientOption) *HTTPNetwork {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	opts = append([]xhttp.ClientOption{xhttp.WithTimeout(timeout)}, opts...)
	return &HTTPNetwork{
		baseURL: baseURL,
		client:  xhttp.NewClient(opts...),
	}
}

var _ service.ComputationNetwork = (*HTTPNetwork)(nil)

func (n *HTTPNetwork) Submit(ctx context.Context, payload models.EncryptedPayload) (string, error) {
	var resp SubmitResponse
	if err := n.postJSON(ctx, "/mpc/computations", payload, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("submit: empty computation id")
	}
	return resp.ID, nil
}

func (n *HTTPNetwork) Poll(ctx context.Context, id string) (models.PollResult, error) {
	var pr models.PollResult
	err := n.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     n.baseURL + "/mpc/computations/" + url.PathEscape(id),
		Headers: map[string]string{"Accept": "application/json"},
	}, &pr)
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) && se.Code == 404 {
			return models.PollResult{}, fmt.Errorf("computation %s: %w", id, models.ErrNotFound)
		}
		return models.PollResult{}, fmt.Errorf("poll %s: %w", id, err)
	}
	return pr, nil
}

// postJSON posts the given payload to path under baseURL and decodes JSON into dest.
func (n *HTTPNetwork) postJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	if n.client == nil || n.baseURL == "" {
		return fmt.Errorf("mpc http client not initialized")
	}
	err := n.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    n.baseURL + path,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: payload,
	}, dest)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}
