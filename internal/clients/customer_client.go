// internal/clients/customer_client.go
package clients

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"toolrental/internal/customer"
)

type CustomerClient struct {
	baseClient
}

func NewCustomerClient(baseURL string, timeout time.Duration) *CustomerClient {
	return &CustomerClient{newBaseClient("customers", baseURL, timeout)}
}

func (c *CustomerClient) GetCustomer(ctx context.Context, customerID int64) (*customer.Customer, error) {
	var cust customer.Customer
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/customers/%d", customerID), nil, &cust); err != nil {
		return nil, err
	}
	return &cust, nil
}

func (c *CustomerClient) GetForLoanValidation(ctx context.Context, customerID int64) (*customer.Standing, error) {
	var standing customer.Standing
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/customers/%d/loan-validation", customerID), nil, &standing); err != nil {
		return nil, err
	}
	return &standing, nil
}
