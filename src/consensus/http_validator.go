package consensus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/fractis/node/src/config"
)

// ConfirmPath is the HTTP route on which a node answers confirmation requests.
const ConfirmPath = "/confirm"

// ConfirmResponse is the body returned by ConfirmPath.
type ConfirmResponse struct {
	Confirmed bool   `json:"confirmed"`
	Reason    string `json:"reason,omitempty"`
}

// HTTPValidator asks a remote node to confirm transactions through its HTTP
// service.
type HTTPValidator struct {
	id     string
	url    string
	client *http.Client
}

// NewHTTPValidator returns a validator posting to http://addr/confirm. A nil
// client means http.DefaultClient.
func NewHTTPValidator(id, addr string, client *http.Client) *HTTPValidator {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPValidator{
		id:     id,
		url:    fmt.Sprintf("http://%s%s", addr, ConfirmPath),
		client: client,
	}
}

// ValidatorsFromConfig builds the validator set described in the
// configuration.
func ValidatorsFromConfig(conf []config.ValidatorConfig, client *http.Client) []Validator {
	res := make([]Validator, 0, len(conf))
	for _, vc := range conf {
		res = append(res, NewHTTPValidator(vc.ID, vc.Addr, client))
	}
	return res
}

// ID implements the Validator interface.
func (v *HTTPValidator) ID() string {
	return v.id
}

// Confirm implements the Validator interface.
func (v *HTTPValidator) Confirm(ctx context.Context, tx *Transaction) (bool, error) {
	body, err := json.Marshal(tx)
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("validator %s: %s: %s", v.id, resp.Status, bytes.TrimSpace(msg))
	}

	var res ConfirmResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return false, fmt.Errorf("validator %s: decode response: %w", v.id, err)
	}

	return res.Confirmed, nil
}
