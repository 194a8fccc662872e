package wallet

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var signerNonceLocks sync.Map

// acquireSignerNonceLock serializes nonce allocation per (chain, account)
// within the process.
func acquireSignerNonceLock(chainID *big.Int, addr common.Address) func() {
	key := fmt.Sprintf("%s/%s", chainID.String(), addr.Hex())
	value, _ := signerNonceLocks.LoadOrStore(key, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
