// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"time"

	"github.com/toeirei/ssm/internal/model"
	"github.com/uptrace/bun"
)

// AuditLogEntry is one recorded action against the fleet, independent of any
// one host so operator-level actions (e.g. trusting a host key) are covered
// alongside per-(host,login) syncs.
type AuditLogEntry struct {
	ID         int
	OccurredAt time.Time
	HostID     int
	Login      string
	Action     string
	Detail     string
}

// Store is the persisted data access layer: CRUD over the desired-state
// entities, the derived queries the reconciliation core needs, and the
// audit trail. It satisfies reconcile.DesiredStateStore and
// sshclient.HostResolver directly so production wiring needs no adapter.
type Store interface {
	CreateHost(ctx context.Context, h model.Host) (int, error)
	UpdateHost(ctx context.Context, h model.Host) error
	DeleteHost(ctx context.Context, id int) error
	GetHost(ctx context.Context, id int) (model.Host, error)
	GetHostByName(ctx context.Context, name string) (model.Host, error)
	ListHosts(ctx context.Context) ([]model.Host, error)
	SetHostDisabled(ctx context.Context, id int, disabled bool) error
	ConfirmHostKey(ctx context.Context, id int, fingerprint string) error

	CreateUser(ctx context.Context, u model.User) (int, error)
	DeleteUser(ctx context.Context, id int) error
	SetUserEnabled(ctx context.Context, id int, enabled bool) error
	GetUser(ctx context.Context, id int) (model.User, error)
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)

	AddPublicKey(ctx context.Context, pk model.PublicKey) (int, error)
	DeletePublicKey(ctx context.Context, id int) error
	ListPublicKeysByUser(ctx context.Context, userID int) ([]model.PublicKey, error)

	CreateAuthorization(ctx context.Context, a model.Authorization) (int, error)
	DeleteAuthorization(ctx context.Context, id int) error
	ListAuthorizationsByHost(ctx context.Context, hostID int) ([]model.Authorization, error)
	ListLoginsForHost(ctx context.Context, hostID int) ([]string, error)

	// DesiredKeys, LookupPublicKey, and Username implement
	// reconcile.DesiredStateStore.
	DesiredKeys(ctx context.Context, hostID int, login string) ([]model.DesiredKey, error)
	LookupPublicKey(ctx context.Context, algorithm, blob string) (model.PublicKey, bool, error)
	Username(ctx context.Context, userID int) (string, error)

	// HostByID implements sshclient.HostResolver.
	HostByID(ctx context.Context, id int) (model.Host, error)

	LogAction(ctx context.Context, hostID int, login, action, detail string) error
	ListAuditLog(ctx context.Context, limit int) ([]AuditLogEntry, error)

	// BunDB exposes the underlying *bun.DB for direct queries; snapshot
	// export/import goes through the Store methods instead.
	BunDB() *bun.DB
	Close() error
}
