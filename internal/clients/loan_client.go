package clients

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"toolrental/internal/customer"
)

// LoanClient is the loans service as the customer service sees it.
type LoanClient struct {
	baseClient
}

func NewLoanClient(baseURL string, timeout time.Duration) *LoanClient {
	return &LoanClient{newBaseClient("loans", baseURL, timeout)}
}

func (c *LoanClient) CustomerSummary(ctx context.Context, customerID int64) (*customer.LoanSummary, error) {
	var summary customer.LoanSummary
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/loans/customers/%d/summary", customerID), nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}
