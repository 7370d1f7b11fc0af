package clients

import (
	"context"
	"net/http"
	"time"

	"toolrental/internal/kardex"
)

type KardexClient struct {
	baseClient
}

func NewKardexClient(baseURL string, timeout time.Duration) *KardexClient {
	return &KardexClient{newBaseClient("kardex", baseURL, timeout)}
}

func (c *KardexClient) RecordMovement(ctx context.Context, req kardex.RecordRequest) (*kardex.Movement, error) {
	var m kardex.Movement
	if err := c.do(ctx, http.MethodPost, "/movements", req, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
