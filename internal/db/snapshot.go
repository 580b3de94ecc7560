// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/toeirei/ssm/internal/model"
)

// Snapshot is the full exportable contents of a Store: every desired-state
// entity, independent of backend, for disaster recovery or migrating
// between database types.
type Snapshot struct {
	Hosts          []model.Host          `json:"hosts"`
	Users          []model.User          `json:"users"`
	PublicKeys     []model.PublicKey     `json:"public_keys"`
	Authorizations []model.Authorization `json:"authorizations"`
}

// ExportSnapshot reads every entity out of the store into a Snapshot.
func ExportSnapshot(ctx context.Context, s Store) (*Snapshot, error) {
	hosts, err := s.ListHosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("export hosts: %w", err)
	}
	users, err := s.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("export users: %w", err)
	}
	var keys []model.PublicKey
	for _, u := range users {
		uk, err := s.ListPublicKeysByUser(ctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("export public keys for user %d: %w", u.ID, err)
		}
		keys = append(keys, uk...)
	}
	var auths []model.Authorization
	for _, h := range hosts {
		ha, err := s.ListAuthorizationsByHost(ctx, h.ID)
		if err != nil {
			return nil, fmt.Errorf("export authorizations for host %d: %w", h.ID, err)
		}
		auths = append(auths, ha...)
	}
	return &Snapshot{Hosts: hosts, Users: users, PublicKeys: keys, Authorizations: auths}, nil
}

// ImportSnapshot recreates every entity from a Snapshot into an empty store.
// IDs are not preserved: entities are inserted in dependency order (users
// and hosts first, then keys and authorizations) and foreign keys are
// remapped from the snapshot's old IDs to the freshly assigned ones.
func ImportSnapshot(ctx context.Context, s Store, snap *Snapshot) error {
	userIDs := make(map[int]int, len(snap.Users))
	for _, u := range snap.Users {
		newID, err := s.CreateUser(ctx, u)
		if err != nil {
			return fmt.Errorf("import user %q: %w", u.Username, err)
		}
		userIDs[u.ID] = newID
	}

	hostIDs := make(map[int]int, len(snap.Hosts))
	// Hosts may reference each other via JumpVia; insert without JumpVia
	// first, then patch it in once every host has a new ID.
	for _, h := range snap.Hosts {
		toCreate := h
		toCreate.ID = 0
		toCreate.JumpVia = 0
		newID, err := s.CreateHost(ctx, toCreate)
		if err != nil {
			return fmt.Errorf("import host %q: %w", h.Name, err)
		}
		hostIDs[h.ID] = newID
	}
	for _, h := range snap.Hosts {
		if h.JumpVia == 0 {
			continue
		}
		updated := h
		updated.ID = hostIDs[h.ID]
		updated.JumpVia = hostIDs[h.JumpVia]
		if err := s.UpdateHost(ctx, updated); err != nil {
			return fmt.Errorf("patch jump_via for host %q: %w", h.Name, err)
		}
	}

	for _, k := range snap.PublicKeys {
		k.UserID = userIDs[k.UserID]
		if _, err := s.AddPublicKey(ctx, k); err != nil {
			return fmt.Errorf("import public key %q: %w", k.Name, err)
		}
	}

	for _, a := range snap.Authorizations {
		a.UserID = userIDs[a.UserID]
		a.HostID = hostIDs[a.HostID]
		if _, err := s.CreateAuthorization(ctx, a); err != nil {
			return fmt.Errorf("import authorization for login %q: %w", a.Login, err)
		}
	}

	return nil
}

// WriteSnapshot zstd-compresses snap as indented JSON to w.
func WriteSnapshot(w io.Writer, snap *Snapshot) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	defer zw.Close()

	enc := json.NewEncoder(zw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot decodes a zstd-compressed JSON snapshot from r.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer zr.Close()

	var snap Snapshot
	if err := json.NewDecoder(zr).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}
