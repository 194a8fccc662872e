package wallet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"

	clierr "github.com/ggonzalez94/orderfill/internal/errors"
)

func decodeRevertData(data []byte) string {
	if len(data) < 4 {
		return ""
	}
	if reason, err := abi.UnpackRevert(data); err == nil {
		return reason
	}
	return fmt.Sprintf("custom error %s", common.Bytes2Hex(data[:4]))
}

func decodeRevertFromError(err error) string {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return ""
	}
	switch data := dataErr.ErrorData().(type) {
	case string:
		return decodeRevertData(common.FromHex(data))
	case []byte:
		return decodeRevertData(data)
	default:
		return ""
	}
}

// wrapEVMError attaches a decoded revert reason to simulation failures.
func wrapEVMError(code clierr.Code, message string, err error) error {
	reason := strings.TrimSpace(decodeRevertFromError(err))
	if reason == "" {
		return clierr.Wrap(code, message, err)
	}
	return clierr.Wrap(code, fmt.Sprintf("%s: %s", message, reason), err).WithDetail("revert_reason", reason)
}
