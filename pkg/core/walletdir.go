package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	wow "github.com/dogecoinfoundation/wowpay/pkg"
)

// FilePermissions makes imported wallet files usable by wownero-wallet-rpc,
// which usually runs as a different user.
type FilePermissions interface {
	AllowReadWrite(path string) error
}

// OSPermissions sets world read/write with os.Chmod.
type OSPermissions struct{}

func (OSPermissions) AllowReadWrite(path string) error {
	return os.Chmod(path, 0666)
}

// WalletOpener is the wallet call made once the files are in place.
type WalletOpener interface {
	OpenWallet(ctx context.Context, filename string, password string) error
}

// ImportWallet copies a wallet and its keys file into the node's wallet
// directory and asks wownero-wallet-rpc to open it.
func ImportWallet(ctx context.Context, node wow.NodeConfig, rpc WalletOpener, perms FilePermissions, walletFile, keysFile, password string) error {
	if node.WalletDir == "" {
		return wow.NewErr(wow.MalformedConfig, "wallet import: walletdir is not configured")
	}
	name := filepath.Base(walletFile)
	if filepath.Base(keysFile) != name+".keys" {
		return wow.NewErr(wow.BadRequest, "wallet import: keys file must be named %s.keys", name)
	}
	for _, src := range []string{walletFile, keysFile} {
		dst := filepath.Join(node.WalletDir, filepath.Base(src))
		if err := copyFile(src, dst); err != nil {
			return fmt.Errorf("wallet import: %w", err)
		}
		if err := perms.AllowReadWrite(dst); err != nil {
			return fmt.Errorf("wallet import: %w", err)
		}
	}
	return rpc.OpenWallet(ctx, name, password)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
