// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package ssmcore

import (
	"fmt"

	"github.com/toeirei/ssm/internal/cache"
	"github.com/toeirei/ssm/internal/db"
	"github.com/toeirei/ssm/internal/opkey"
	"github.com/toeirei/ssm/internal/reconcile"
	"github.com/toeirei/ssm/internal/sshclient"
)

// app bundles the store, wire client, and engine a command needs, built
// fresh from appConfig for each invocation.
type app struct {
	store  db.Store
	wire   *sshclient.Client
	engine *reconcile.Engine
}

func openApp() (*app, error) {
	store, err := db.NewStoreFromDSN(appConfig.Database.Type, appConfig.Database.Dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	signer, err := opkey.Load(appConfig.SSH.PrivateKeyPath, appConfig.SSH.PrivateKeyPassphrase)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load operator key: %w", err)
	}

	wire := sshclient.New(signer, store, appConfig.SSH.ConnectTimeout, appConfig.SSH.ExecTimeout)
	cacheClient := cache.New(wire)
	engine := reconcile.New(cacheClient, wire, store, appConfig.Probe.Pragma)

	return &app{store: store, wire: wire, engine: engine}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
