// tests/integration/main_test.go
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolrental/internal/catalog"
	"toolrental/internal/customer"
	"toolrental/internal/kardex"
	"toolrental/internal/loan"
)

// These tests drive a running deployment through the gateway. They are
// skipped unless GATEWAY_URL points at one, e.g. http://localhost:8080.
type TestSuite struct {
	baseURL string
	client  *http.Client
}

func setupTestSuite(t *testing.T) *TestSuite {
	t.Helper()
	baseURL := os.Getenv("GATEWAY_URL")
	if baseURL == "" {
		t.Skip("GATEWAY_URL not set")
	}
	return &TestSuite{baseURL: baseURL + "/api/v1", client: &http.Client{Timeout: 10 * time.Second}}
}

func (ts *TestSuite) do(t *testing.T, method, path string, body, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.baseURL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// newToolGroup creates a tariff and a group with the given number of units.
func (ts *TestSuite) newToolGroup(t *testing.T, units int) *catalog.ToolGroup {
	t.Helper()
	var tariff catalog.Tariff
	status := ts.do(t, http.MethodPost, "/catalog/tariffs", map[string]int64{"daily_rental_rate": 1000, "daily_fine_rate": 500}, &tariff)
	require.Equal(t, http.StatusCreated, status)

	var group catalog.ToolGroup
	status = ts.do(t, http.MethodPost, "/catalog/groups", catalog.CreateToolGroupRequest{
		Name:             "Drill " + uuid.NewString()[:8],
		Category:         "power",
		ReplacementValue: 90000,
		TariffID:         tariff.ID,
		Units:            units,
	}, &group)
	require.Equal(t, http.StatusCreated, status)
	require.Len(t, group.UnitIDs, units)
	return &group
}

var rutSeq = time.Now().UnixNano() % 9_000_000

func (ts *TestSuite) newCustomer(t *testing.T) *customer.Customer {
	t.Helper()
	rutSeq++
	var c customer.Customer
	status := ts.do(t, http.MethodPost, "/customers", customer.CreateCustomerRequest{
		Name:  "Test Customer",
		RUT:   fmt.Sprintf("%d-K", 10_000_000+rutSeq),
		Email: fmt.Sprintf("c%d@example.com", rutSeq),
		Phone: "+56911111111",
	}, &c)
	require.Equal(t, http.StatusCreated, status)
	return &c
}

func TestLoanFlow(t *testing.T) {
	ts := setupTestSuite(t)
	group := ts.newToolGroup(t, 1)
	cust := ts.newCustomer(t)

	var view loan.LoanView
	status := ts.do(t, http.MethodPost, "/loans", loan.RegisterLoanRequest{
		CustomerID:  cust.ID,
		ToolGroupID: group.ID,
		DueDate:     time.Now().Add(72 * time.Hour),
	}, &view)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, int64(3000), view.TotalCost)

	var unit catalog.UnitView
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, fmt.Sprintf("/catalog/units/%d", view.ToolUnitID), nil, &unit))
	assert.Equal(t, catalog.StatusLoaned, unit.Status)

	status = ts.do(t, http.MethodPost, fmt.Sprintf("/loans/%d/return", view.ID), loan.ReturnLoanRequest{}, &view)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, loan.StatusReturned, view.Status)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, fmt.Sprintf("/catalog/units/%d", view.ToolUnitID), nil, &unit))
	assert.Equal(t, catalog.StatusAvailable, unit.Status)

	var history []map[string]any
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, fmt.Sprintf("/loans/%d/history", view.ID), nil, &history))
	assert.Len(t, history, 2)

	// the ledger is written asynchronously
	assert.Eventually(t, func() bool {
		var movements []kardex.Movement
		if ts.do(t, http.MethodGet, fmt.Sprintf("/kardex/movements/units/%d", view.ToolUnitID), nil, &movements) != http.StatusOK {
			return false
		}
		return len(movements) == 3
	}, 5*time.Second, 200*time.Millisecond)
}

func TestConcurrentRegistrationPreventsDoubleLoan(t *testing.T) {
	ts := setupTestSuite(t)
	group := ts.newToolGroup(t, 1)

	var customers []*customer.Customer
	for i := 0; i < 10; i++ {
		customers = append(customers, ts.newCustomer(t))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	successCount := 0

	for _, c := range customers {
		wg.Add(1)
		go func(c *customer.Customer) {
			defer wg.Done()
			body, _ := json.Marshal(loan.RegisterLoanRequest{
				CustomerID:  c.ID,
				ToolGroupID: group.ID,
				DueDate:     time.Now().Add(24 * time.Hour),
			})
			resp, err := ts.client.Post(ts.baseURL+"/loans", "application/json", bytes.NewReader(body))
			if err != nil {
				return
			}
			resp.Body.Close()
			if resp.StatusCode == http.StatusCreated {
				mu.Lock()
				successCount++
				mu.Unlock()
			}
		}(c)
	}
	wg.Wait()

	assert.Equal(t, 1, successCount, "Only one concurrent registration should get the unit")

	var unit catalog.UnitView
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, fmt.Sprintf("/catalog/units/%d", group.UnitIDs[0]), nil, &unit))
	assert.Equal(t, catalog.StatusLoaned, unit.Status)
}
