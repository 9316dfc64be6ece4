package chuangzhi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Client talks to the 创致 platform REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient() *Client {
	baseURL := strings.TrimSpace(os.Getenv("CHUANGZHI_BASE_URL"))
	if baseURL == "" {
		baseURL = "http://apply.czwh.cc/prod-api"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) getJSON(ctx context.Context, token string, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// VerifyToken checks the stored credential against the whoami
// endpoint. It never returns an error: a transport failure is folded
// into an invalid result with a 连接失败 message.
func (c *Client) VerifyToken(ctx context.Context, token string) TokenCheck {
	var info infoResponse
	if err := c.getJSON(ctx, token, "/getInfo", &info); err != nil {
		return TokenCheck{Valid: false, Message: fmt.Sprintf("连接失败: %s", err.Error())}
	}
	if info.Code == 200 {
		return TokenCheck{Valid: true, Message: "Token有效"}
	}
	if info.Msg != "" {
		return TokenCheck{Valid: false, Message: info.Msg}
	}
	return TokenCheck{Valid: false, Message: "Token无效或已过期"}
}

// GetAllOrders drains the remote order list page by page. The loop
// stops on an empty page or once the server-reported total is
// reached. There is no retry; a transport error aborts the drain.
func (c *Client) GetAllOrders(ctx context.Context, token string) ([]Order, error) {
	allOrders := []Order{}
	pageNum := 1
	pageSize := 100

	for {
		path := fmt.Sprintf("/business/designer/getDesignOrderList?pageNum=%d&pageSize=%d", pageNum, pageSize)
		var page ListResponse
		if err := c.getJSON(ctx, token, path, &page); err != nil {
			return nil, err
		}

		if len(page.Rows) == 0 {
			break
		}
		allOrders = append(allOrders, page.Rows...)

		if len(allOrders) >= page.Total {
			break
		}
		pageNum++
	}

	return allOrders, nil
}

// SubmitOrder uploads one order. The returned error covers transport
// problems only; application-level rejection arrives as Code != 200.
func (c *Client) SubmitOrder(ctx context.Context, token string, order SubmitRequest) (SubmitResponse, error) {
	payload, err := json.Marshal(order)
	if err != nil {
		return SubmitResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/business/designer/submitDesignOrder", bytes.NewReader(payload))
	if err != nil {
		return SubmitResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return SubmitResponse{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return SubmitResponse{}, err
	}

	var result SubmitResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return SubmitResponse{}, err
	}
	return result, nil
}
