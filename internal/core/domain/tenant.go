package domain

import "time"

// Tenant is an organizational boundary partitioning accounts. Read-only from
// the auth core's perspective except for lookup at registration time.
type Tenant struct {
	ID        string
	Slug      string
	Name      string
	Domain    string
	IsActive  bool
	CreatedAt time.Time
}
