// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"time"

	"github.com/toeirei/ssm/internal/model"
	"github.com/uptrace/bun"
)

// hostRow, userRow, publicKeyRow, authorizationRow, and auditLogRow are the
// bun-mapped persistence shapes for model's entities. Kept distinct from the
// model package's plain structs so storage concerns (nullable FKs, bun
// tags) never leak into the domain types the reconciliation core operates on.

type hostRow struct {
	bun.BaseModel `bun:"table:hosts,alias:h"`

	ID                 int    `bun:"id,pk,autoincrement"`
	Name               string `bun:"name,notnull,unique"`
	Address            string `bun:"address,notnull"`
	Port               int    `bun:"port,notnull"`
	LoginUser          string `bun:"login_user,notnull"`
	HostKeyFingerprint string `bun:"host_key_fingerprint,notnull"`
	JumpVia            *int   `bun:"jump_via"`
	Disabled           bool   `bun:"disabled,notnull"`
	Comment            string `bun:"comment,notnull"`
}

func (r hostRow) toModel() model.Host {
	h := model.Host{
		ID:                 r.ID,
		Name:               r.Name,
		Address:            r.Address,
		Port:               r.Port,
		LoginUser:          r.LoginUser,
		HostKeyFingerprint: r.HostKeyFingerprint,
		Disabled:           r.Disabled,
		Comment:            r.Comment,
	}
	if r.JumpVia != nil {
		h.JumpVia = *r.JumpVia
	}
	return h
}

func hostRowFromModel(h model.Host) hostRow {
	row := hostRow{
		ID:                 h.ID,
		Name:               h.Name,
		Address:            h.Address,
		Port:               h.Port,
		LoginUser:          h.LoginUser,
		HostKeyFingerprint: h.HostKeyFingerprint,
		Disabled:           h.Disabled,
		Comment:            h.Comment,
	}
	if h.JumpVia != 0 {
		jv := h.JumpVia
		row.JumpVia = &jv
	}
	return row
}

type userRow struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID       int    `bun:"id,pk,autoincrement"`
	Username string `bun:"username,notnull,unique"`
	Enabled  bool   `bun:"enabled,notnull"`
	Comment  string `bun:"comment,notnull"`
}

func (r userRow) toModel() model.User {
	return model.User{ID: r.ID, Username: r.Username, Enabled: r.Enabled, Comment: r.Comment}
}

type publicKeyRow struct {
	bun.BaseModel `bun:"table:public_keys,alias:pk"`

	ID        int    `bun:"id,pk,autoincrement"`
	Algorithm string `bun:"algorithm,notnull"`
	Blob      string `bun:"blob,notnull"`
	UserID    int    `bun:"user_id,notnull"`
	Name      string `bun:"name,notnull"`
	Comment   string `bun:"comment,notnull"`
}

func (r publicKeyRow) toModel() model.PublicKey {
	return model.PublicKey{ID: r.ID, Algorithm: r.Algorithm, Blob: r.Blob, UserID: r.UserID, Name: r.Name, Comment: r.Comment}
}

type authorizationRow struct {
	bun.BaseModel `bun:"table:authorizations,alias:a"`

	ID      int    `bun:"id,pk,autoincrement"`
	UserID  int    `bun:"user_id,notnull"`
	HostID  int    `bun:"host_id,notnull"`
	Login   string `bun:"login,notnull"`
	Options string `bun:"options,notnull"`
}

func (r authorizationRow) toModel() model.Authorization {
	return model.Authorization{ID: r.ID, UserID: r.UserID, HostID: r.HostID, Login: r.Login, Options: r.Options}
}

type auditLogRow struct {
	bun.BaseModel `bun:"table:audit_log,alias:al"`

	ID         int       `bun:"id,pk,autoincrement"`
	OccurredAt time.Time `bun:"occurred_at,notnull"`
	HostID     *int      `bun:"host_id"`
	Login      string    `bun:"login,notnull"`
	Action     string    `bun:"action,notnull"`
	Detail     string    `bun:"detail,notnull"`
}

func (r auditLogRow) toEntry() AuditLogEntry {
	e := AuditLogEntry{ID: r.ID, OccurredAt: r.OccurredAt, Login: r.Login, Action: r.Action, Detail: r.Detail}
	if r.HostID != nil {
		e.HostID = *r.HostID
	}
	return e
}
