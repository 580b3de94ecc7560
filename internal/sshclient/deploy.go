// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package sshclient

import (
	"context"
	"fmt"
	"path"

	"github.com/pkg/sftp"
	"github.com/toeirei/ssm/internal/model"
	"github.com/toeirei/ssm/internal/probe"
)

// DeployProbe copies the embedded probe script to probe.RemotePath on H and
// marks it executable. Idempotent: re-running it simply overwrites the
// remote copy, which is how schema-version bumps get rolled out.
func (c *Client) DeployProbe(ctx context.Context, h model.Host) error {
	client, err := c.dialChain(ctx, h)
	if err != nil {
		return err
	}
	defer client.Close()

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		return &ErrUnreachable{HostName: h.Name, Cause: fmt.Errorf("open sftp subsystem: %w", err)}
	}
	defer sftpClient.Close()

	dir := path.Dir(probe.RemotePath)
	if dir != "." {
		if err := sftpClient.MkdirAll(dir); err != nil {
			return &ErrUnreachable{HostName: h.Name, Cause: fmt.Errorf("create %s: %w", dir, err)}
		}
	}

	tmpPath := probe.RemotePath + ".upload"
	f, err := sftpClient.Create(tmpPath)
	if err != nil {
		return &ErrUnreachable{HostName: h.Name, Cause: fmt.Errorf("create temp probe file: %w", err)}
	}
	if _, err := f.Write(probe.Script); err != nil {
		f.Close()
		_ = sftpClient.Remove(tmpPath)
		return &ErrUnreachable{HostName: h.Name, Cause: fmt.Errorf("write probe script: %w", err)}
	}
	f.Close()

	if err := sftpClient.Chmod(tmpPath, 0700); err != nil {
		_ = sftpClient.Remove(tmpPath)
		return &ErrUnreachable{HostName: h.Name, Cause: fmt.Errorf("chmod probe script: %w", err)}
	}

	// Plain SFTP Rename fails if the destination already exists (no
	// overwrite semantics guaranteed across servers), so redeployment moves
	// the old script to a backup name first and restores it if the final
	// rename fails.
	backupPath := probe.RemotePath + ".bak"
	_ = sftpClient.Remove(backupPath)
	_ = sftpClient.Rename(probe.RemotePath, backupPath)

	if err := sftpClient.Rename(tmpPath, probe.RemotePath); err != nil {
		_ = sftpClient.Rename(backupPath, probe.RemotePath)
		_ = sftpClient.Remove(tmpPath)
		return &ErrUnreachable{HostName: h.Name, Cause: fmt.Errorf("install probe script: %w", err)}
	}
	_ = sftpClient.Remove(backupPath)
	return nil
}
