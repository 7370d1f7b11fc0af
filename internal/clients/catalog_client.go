// internal/clients/catalog_client.go
package clients

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"toolrental/internal/catalog"
)

type CatalogClient struct {
	baseClient
}

func NewCatalogClient(baseURL string, timeout time.Duration) *CatalogClient {
	return &CatalogClient{newBaseClient("catalog", baseURL, timeout)}
}

func (c *CatalogClient) GetUnit(ctx context.Context, unitID int64) (*catalog.UnitView, error) {
	var unit catalog.UnitView
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/units/%d", unitID), nil, &unit); err != nil {
		return nil, err
	}
	return &unit, nil
}

func (c *CatalogClient) GetAvailableUnit(ctx context.Context, toolGroupID int64) (*catalog.UnitView, error) {
	var unit catalog.UnitView
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/groups/%d/available-unit", toolGroupID), nil, &unit); err != nil {
		return nil, err
	}
	return &unit, nil
}

func (c *CatalogClient) SetUnitStatus(ctx context.Context, unitID int64, status catalog.ToolStatus, actorName string, loanID int64) error {
	body := struct {
		Status catalog.ToolStatus `json:"status"`
		Actor  string             `json:"actor,omitempty"`
		LoanID int64              `json:"loan_id"`
	}{status, actorName, loanID}
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/units/%d/status", unitID), body, nil)
}

func (c *CatalogClient) GetToolGroup(ctx context.Context, toolGroupID int64) (*catalog.ToolGroup, error) {
	var group catalog.ToolGroup
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/groups/%d", toolGroupID), nil, &group); err != nil {
		return nil, err
	}
	return &group, nil
}
