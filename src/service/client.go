package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/mosaicnetworks/overlay/src/protocol"
)

// Client submits transactions to a Service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the service listening on addr, either
// "host:port" or a full URL.
func NewClient(addr string, timeout time.Duration) *Client {
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return &Client{
		baseURL: strings.TrimSuffix(addr, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// SubmitTx posts tx and returns the hash reported by the service.
func (c *Client) SubmitTx(tx *protocol.TxFrame) (string, error) {
	resp, err := c.http.Post(c.baseURL+"/tx", "application/octet-stream", bytes.NewReader(tx.Message().Blob))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("submit tx: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var res map[string]string
	if err := json.Unmarshal(body, &res); err != nil {
		return "", err
	}
	return res["hash"], nil
}
