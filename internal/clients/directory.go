package clients

import (
	"context"
	"errors"

	"toolrental/internal/kardex"
)

var errNoUserService = errors.New("user service not configured")

// Directory resolves ledger display names through the owning services.
type Directory struct {
	catalog   *CatalogClient
	customers *CustomerClient
	users     *UserClient
}

// NewDirectory builds a kardex.Directory. users may be nil when no user
// service is deployed; actor names then fall back to placeholders.
func NewDirectory(catalog *CatalogClient, customers *CustomerClient, users *UserClient) *Directory {
	return &Directory{catalog: catalog, customers: customers, users: users}
}

var _ kardex.Directory = (*Directory)(nil)

func (d *Directory) LookupToolUnit(ctx context.Context, unitID int64) (kardex.ToolRef, error) {
	unit, err := d.catalog.GetUnit(ctx, unitID)
	if err != nil {
		return kardex.ToolRef{}, err
	}
	return kardex.ToolRef{ToolGroupID: unit.ToolGroupID, ToolGroupName: unit.ToolGroupName}, nil
}

func (d *Directory) LookupCustomerName(ctx context.Context, customerID int64) (string, error) {
	c, err := d.customers.GetCustomer(ctx, customerID)
	if err != nil {
		return "", err
	}
	return c.Name, nil
}

func (d *Directory) LookupUserName(ctx context.Context, userID int64) (string, error) {
	if d.users == nil {
		return "", errNoUserService
	}
	u, err := d.users.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.DisplayName(), nil
}
