package fill

import (
	"context"
	"fmt"

	clierr "github.com/ggonzalez94/orderfill/internal/errors"
	"github.com/ggonzalez94/orderfill/internal/wallet"
)

// CheckChainID fails unless the wallet is connected to the expected chain.
func CheckChainID(ctx context.Context, w wallet.Wallet, expected int64) error {
	if w == nil {
		return clierr.New(clierr.CodeWalletUnavailable, "wallet is not connected")
	}
	actual, err := w.ChainID(ctx)
	if err != nil {
		return err
	}
	if actual != expected {
		return clierr.New(clierr.CodeChainMismatch, fmt.Sprintf("wallet is on chain %d, configured chain is %d", actual, expected)).
			WithDetail("configured_chain_id", expected).
			WithDetail("wallet_chain_id", actual)
	}
	return nil
}
