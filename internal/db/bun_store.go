// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/toeirei/ssm/internal/model"
	"github.com/uptrace/bun"
)

// bunStore implements Store over bun, uniformly across sqlite, postgres, and
// mysql: bun's query builder already hides dialect differences for the
// straightforward CRUD this package needs, so one implementation serves all
// three backends rather than three near-identical ones.
type bunStore struct {
	bun    *bun.DB
	dbType string
}

func (s *bunStore) BunDB() *bun.DB { return s.bun }
func (s *bunStore) Close() error   { return s.bun.Close() }

func (s *bunStore) CreateHost(ctx context.Context, h model.Host) (int, error) {
	if err := s.validateJumpChain(ctx, 0, h.JumpVia); err != nil {
		return 0, err
	}
	row := hostRowFromModel(h)
	if _, err := s.bun.NewInsert().Model(&row).Exec(ctx); err != nil {
		return 0, fmt.Errorf("create host: %w", MapDBError(err))
	}
	return row.ID, nil
}

func (s *bunStore) UpdateHost(ctx context.Context, h model.Host) error {
	if err := s.validateJumpChain(ctx, h.ID, h.JumpVia); err != nil {
		return err
	}
	row := hostRowFromModel(h)
	_, err := s.bun.NewUpdate().Model(&row).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("update host %d: %w", h.ID, err)
	}
	return nil
}

// validateJumpChain walks the jump_via chain starting at jumpVia, failing
// with ErrJumpCycle if it ever revisits selfID or any other host already
// seen. selfID is 0 for a host not yet assigned an ID (CreateHost): a row
// with no ID yet cannot be the back-edge of an existing cycle, but the walk
// still guards against chaining onto an already-broken (cyclic) chain. This
// is the pre-flight DFS over jump_via: it runs before any row is written,
// not at connection time, which is sshclient's separate belt-and-suspenders
// check against data that predates this validation.
func (s *bunStore) validateJumpChain(ctx context.Context, selfID, jumpVia int) error {
	if jumpVia == 0 {
		return nil
	}
	visited := map[int]bool{}
	if selfID != 0 {
		visited[selfID] = true
	}
	cur := jumpVia
	for cur != 0 {
		if visited[cur] {
			return fmt.Errorf("jump_via %d: %w", jumpVia, ErrJumpCycle)
		}
		visited[cur] = true
		h, err := s.GetHost(ctx, cur)
		if err != nil {
			return fmt.Errorf("resolve jump host %d: %w", cur, err)
		}
		cur = h.JumpVia
	}
	return nil
}

func (s *bunStore) DeleteHost(ctx context.Context, id int) error {
	_, err := s.bun.NewDelete().Model((*hostRow)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete host %d: %w", id, err)
	}
	return nil
}

func (s *bunStore) GetHost(ctx context.Context, id int) (model.Host, error) {
	var row hostRow
	err := s.bun.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Host{}, fmt.Errorf("host %d: %w", id, ErrNotFound)
		}
		return model.Host{}, err
	}
	return row.toModel(), nil
}

func (s *bunStore) GetHostByName(ctx context.Context, name string) (model.Host, error) {
	var row hostRow
	err := s.bun.NewSelect().Model(&row).Where("name = ?", name).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Host{}, fmt.Errorf("host %q: %w", name, ErrNotFound)
		}
		return model.Host{}, err
	}
	return row.toModel(), nil
}

func (s *bunStore) ListHosts(ctx context.Context) ([]model.Host, error) {
	var rows []hostRow
	if err := s.bun.NewSelect().Model(&rows).Order("name ASC").Scan(ctx); err != nil {
		return nil, err
	}
	hosts := make([]model.Host, len(rows))
	for i, r := range rows {
		hosts[i] = r.toModel()
	}
	return hosts, nil
}

func (s *bunStore) SetHostDisabled(ctx context.Context, id int, disabled bool) error {
	_, err := s.bun.NewUpdate().Model((*hostRow)(nil)).
		Set("disabled = ?", disabled).Where("id = ?", id).Exec(ctx)
	return err
}

func (s *bunStore) ConfirmHostKey(ctx context.Context, id int, fingerprint string) error {
	_, err := s.bun.NewUpdate().Model((*hostRow)(nil)).
		Set("host_key_fingerprint = ?", fingerprint).Where("id = ?", id).Exec(ctx)
	return err
}

func (s *bunStore) HostByID(ctx context.Context, id int) (model.Host, error) {
	return s.GetHost(ctx, id)
}

func (s *bunStore) CreateUser(ctx context.Context, u model.User) (int, error) {
	row := userRow{Username: u.Username, Enabled: u.Enabled, Comment: u.Comment}
	if _, err := s.bun.NewInsert().Model(&row).Exec(ctx); err != nil {
		return 0, fmt.Errorf("create user: %w", MapDBError(err))
	}
	return row.ID, nil
}

func (s *bunStore) DeleteUser(ctx context.Context, id int) error {
	_, err := s.bun.NewDelete().Model((*userRow)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

func (s *bunStore) SetUserEnabled(ctx context.Context, id int, enabled bool) error {
	_, err := s.bun.NewUpdate().Model((*userRow)(nil)).
		Set("enabled = ?", enabled).Where("id = ?", id).Exec(ctx)
	return err
}

func (s *bunStore) GetUser(ctx context.Context, id int) (model.User, error) {
	var row userRow
	err := s.bun.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
		}
		return model.User{}, err
	}
	return row.toModel(), nil
}

func (s *bunStore) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	var row userRow
	err := s.bun.NewSelect().Model(&row).Where("username = ?", username).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, fmt.Errorf("user %q: %w", username, ErrNotFound)
		}
		return model.User{}, err
	}
	return row.toModel(), nil
}

func (s *bunStore) ListUsers(ctx context.Context) ([]model.User, error) {
	var rows []userRow
	if err := s.bun.NewSelect().Model(&rows).Order("username ASC").Scan(ctx); err != nil {
		return nil, err
	}
	users := make([]model.User, len(rows))
	for i, r := range rows {
		users[i] = r.toModel()
	}
	return users, nil
}

func (s *bunStore) AddPublicKey(ctx context.Context, pk model.PublicKey) (int, error) {
	row := publicKeyRow{Algorithm: pk.Algorithm, Blob: pk.Blob, UserID: pk.UserID, Name: pk.Name, Comment: pk.Comment}
	if _, err := s.bun.NewInsert().Model(&row).Exec(ctx); err != nil {
		return 0, fmt.Errorf("add public key: %w", MapDBError(err))
	}
	return row.ID, nil
}

func (s *bunStore) DeletePublicKey(ctx context.Context, id int) error {
	_, err := s.bun.NewDelete().Model((*publicKeyRow)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

func (s *bunStore) ListPublicKeysByUser(ctx context.Context, userID int) ([]model.PublicKey, error) {
	var rows []publicKeyRow
	if err := s.bun.NewSelect().Model(&rows).Where("user_id = ?", userID).Order("id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	keys := make([]model.PublicKey, len(rows))
	for i, r := range rows {
		keys[i] = r.toModel()
	}
	return keys, nil
}

func (s *bunStore) CreateAuthorization(ctx context.Context, a model.Authorization) (int, error) {
	row := authorizationRow{UserID: a.UserID, HostID: a.HostID, Login: a.Login, Options: a.Options}
	if _, err := s.bun.NewInsert().Model(&row).Exec(ctx); err != nil {
		return 0, fmt.Errorf("create authorization: %w", MapDBError(err))
	}
	return row.ID, nil
}

func (s *bunStore) DeleteAuthorization(ctx context.Context, id int) error {
	_, err := s.bun.NewDelete().Model((*authorizationRow)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

func (s *bunStore) ListAuthorizationsByHost(ctx context.Context, hostID int) ([]model.Authorization, error) {
	var rows []authorizationRow
	if err := s.bun.NewSelect().Model(&rows).Where("host_id = ?", hostID).Scan(ctx); err != nil {
		return nil, err
	}
	auths := make([]model.Authorization, len(rows))
	for i, r := range rows {
		auths[i] = r.toModel()
	}
	return auths, nil
}

func (s *bunStore) ListLoginsForHost(ctx context.Context, hostID int) ([]string, error) {
	var logins []string
	err := s.bun.NewSelect().Model((*authorizationRow)(nil)).
		ColumnExpr("DISTINCT login").Where("host_id = ?", hostID).Scan(ctx, &logins)
	if err != nil {
		return nil, err
	}
	return logins, nil
}

// DesiredKeys implements reconcile.DesiredStateStore: one entry per
// (Authorization.Options, PublicKey) where the owning user is enabled.
func (s *bunStore) DesiredKeys(ctx context.Context, hostID int, login string) ([]model.DesiredKey, error) {
	type joined struct {
		Options   string `bun:"options"`
		Algorithm string `bun:"algorithm"`
		Blob      string `bun:"blob"`
		KeyID     int    `bun:"key_id"`
		UserID    int    `bun:"user_id"`
		Username  string `bun:"username"`
		KeyName   string `bun:"key_name"`
		Comment   string `bun:"key_comment"`
	}
	var rows []joined
	err := s.bun.NewSelect().
		Model((*authorizationRow)(nil)).
		ColumnExpr("a.options AS options").
		ColumnExpr("pk.algorithm AS algorithm").
		ColumnExpr("pk.blob AS blob").
		ColumnExpr("pk.id AS key_id").
		ColumnExpr("pk.user_id AS user_id").
		ColumnExpr("pk.name AS key_name").
		ColumnExpr("pk.comment AS key_comment").
		ColumnExpr("u.username AS username").
		Join("JOIN users AS u ON u.id = a.user_id").
		Join("JOIN public_keys AS pk ON pk.user_id = u.id").
		Where("a.host_id = ?", hostID).
		Where("a.login = ?", login).
		Where("u.enabled = ?", true).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("desired keys for host %d login %q: %w", hostID, login, err)
	}
	desired := make([]model.DesiredKey, len(rows))
	for i, r := range rows {
		desired[i] = model.DesiredKey{
			Options: r.Options,
			Key: model.PublicKey{
				ID: r.KeyID, Algorithm: r.Algorithm, Blob: r.Blob,
				UserID: r.UserID, Name: r.KeyName, Comment: r.Comment,
			},
			OwnerUsername: r.Username,
		}
	}
	return desired, nil
}

func (s *bunStore) LookupPublicKey(ctx context.Context, algorithm, blob string) (model.PublicKey, bool, error) {
	var row publicKeyRow
	err := s.bun.NewSelect().Model(&row).Where("algorithm = ?", algorithm).Where("blob = ?", blob).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.PublicKey{}, false, nil
		}
		return model.PublicKey{}, false, err
	}
	return row.toModel(), true, nil
}

func (s *bunStore) Username(ctx context.Context, userID int) (string, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.Username, nil
}

func (s *bunStore) LogAction(ctx context.Context, hostID int, login, action, detail string) error {
	row := auditLogRow{OccurredAt: time.Now(), Login: login, Action: action, Detail: detail}
	if hostID != 0 {
		row.HostID = &hostID
	}
	_, err := s.bun.NewInsert().Model(&row).Exec(ctx)
	return err
}

func (s *bunStore) ListAuditLog(ctx context.Context, limit int) ([]AuditLogEntry, error) {
	var rows []auditLogRow
	q := s.bun.NewSelect().Model(&rows).Order("occurred_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	entries := make([]AuditLogEntry, len(rows))
	for i, r := range rows {
		entries[i] = r.toEntry()
	}
	return entries, nil
}
