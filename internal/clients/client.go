// Package clients holds the HTTP clients services use to call each other.
package clients

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"toolrental/internal/apperror"
	"toolrental/internal/httpapi"
	"toolrental/internal/logger"
)

// baseClient is shared by every collaborator client. It never retries.
type baseClient struct {
	service string
	http    *resty.Client
}

func newBaseClient(service, baseURL string, timeout time.Duration) baseClient {
	return baseClient{
		service: service,
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

// do sends body as JSON and decodes a 2xx response into out. Transport
// failures and 5xx answers wrap apperror.ErrUnavailable; other error answers
// wrap the sentinel named by the response's code.
func (c *baseClient) do(ctx context.Context, method, path string, body, out any) error {
	operation := method + " " + path
	logger.ExternalServiceCall(c.service, operation)

	reqID := middleware.GetReqID(ctx)
	if reqID == "" {
		reqID = uuid.NewString()
	}

	req := c.http.R().
		SetContext(ctx).
		SetHeader(middleware.RequestIDHeader, reqID).
		SetError(&httpapi.ErrorResponse{})
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		err = fmt.Errorf("%s: %w: %w", operation, apperror.ErrUnavailable, err)
		logger.ExternalServiceResult(c.service, operation, err)
		return err
	}
	if resp.IsError() {
		err = responseError(operation, resp)
		logger.ExternalServiceResult(c.service, operation, err)
		return err
	}

	logger.ExternalServiceResult(c.service, operation, nil)
	return nil
}

func responseError(operation string, resp *resty.Response) error {
	status := resp.StatusCode()
	if status >= http.StatusInternalServerError {
		return fmt.Errorf("%s: %w: status %d", operation, apperror.ErrUnavailable, status)
	}

	if body, ok := resp.Error().(*httpapi.ErrorResponse); ok && body != nil {
		if sentinel := apperror.FromCode(body.Code); sentinel != nil {
			return fmt.Errorf("%s: %w: %s", operation, sentinel, body.Error)
		}
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("%s: %w", operation, apperror.ErrNotFound)
	}
	return fmt.Errorf("%s: unexpected status %d", operation, status)
}
