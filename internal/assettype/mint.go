package assettype

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	clierr "github.com/ggonzalez94/orderfill/internal/errors"
	"github.com/ggonzalez94/orderfill/internal/order"
)

var mintTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Part": {
		{Name: "account", Type: "address"},
		{Name: "value", Type: "uint96"},
	},
	"Mint721": {
		{Name: "tokenId", Type: "uint256"},
		{Name: "tokenURI", Type: "string"},
		{Name: "creators", Type: "Part[]"},
		{Name: "royalties", Type: "Part[]"},
	},
	"Mint1155": {
		{Name: "tokenId", Type: "uint256"},
		{Name: "tokenURI", Type: "string"},
		{Name: "supply", Type: "uint256"},
		{Name: "creators", Type: "Part[]"},
		{Name: "royalties", Type: "Part[]"},
	},
}

// MintTypedData builds the EIP-712 payload creators sign for a lazy item.
// The domain is bound to the chain and the collection contract.
func MintTypedData(chainID int64, t order.AssetType) (apitypes.TypedData, error) {
	var primary string
	switch t.AssetClass {
	case order.ClassERC721Lazy:
		primary = "Mint721"
	case order.ClassERC1155Lazy:
		primary = "Mint1155"
	default:
		return apitypes.TypedData{}, fmt.Errorf("asset class %s has no mint payload", t.AssetClass)
	}
	if t.TokenID == nil {
		return apitypes.TypedData{}, fmt.Errorf("mint payload requires a token id")
	}

	message := apitypes.TypedDataMessage{
		"tokenId":   t.TokenID.String(),
		"tokenURI":  t.URI,
		"creators":  partsMessage(t.Creators),
		"royalties": partsMessage(t.Royalties),
	}
	if primary == "Mint1155" {
		supply := t.Supply
		if supply == nil {
			supply = new(big.Int)
		}
		message["supply"] = supply.String()
	}

	return apitypes.TypedData{
		Types:       mintTypes,
		PrimaryType: primary,
		Domain: apitypes.TypedDataDomain{
			Name:              primary,
			Version:           "1",
			ChainId:           math.NewHexOrDecimal256(chainID),
			VerifyingContract: t.Contract.Hex(),
		},
		Message: message,
	}, nil
}

func partsMessage(parts []order.Part) []interface{} {
	out := make([]interface{}, 0, len(parts))
	for _, p := range parts {
		out = append(out, map[string]interface{}{
			"account": p.Account.Hex(),
			"value":   big.NewInt(p.Value).String(),
		})
	}
	return out
}

// MintHash is the digest each creator signs.
func MintHash(chainID int64, t order.AssetType) ([]byte, error) {
	typed, err := MintTypedData(chainID, t)
	if err != nil {
		return nil, err
	}
	hash, _, err := apitypes.TypedDataAndHash(typed)
	if err != nil {
		return nil, fmt.Errorf("hash mint payload: %w", err)
	}
	return hash, nil
}

// VerifyCreators checks that signature i recovers to creator i.
func VerifyCreators(chainID int64, t order.AssetType) error {
	if len(t.Creators) == 0 {
		return invalidProof(t, "lazy asset declares no creators")
	}
	if len(t.Signatures) != len(t.Creators) {
		return invalidProof(t, fmt.Sprintf("expected %d creator signatures, got %d", len(t.Creators), len(t.Signatures)))
	}
	hash, err := MintHash(chainID, t)
	if err != nil {
		return clierr.Wrap(clierr.CodeInvalidLazyProof, "build lazy mint digest", err)
	}
	for i, creator := range t.Creators {
		signer, err := recoverSigner(hash, t.Signatures[i])
		if err != nil {
			return invalidProof(t, fmt.Sprintf("creator %d signature: %v", i, err))
		}
		if signer != creator.Account {
			return invalidProof(t, fmt.Sprintf("creator %d signature recovers to %s, expected %s", i, signer.Hex(), creator.Account.Hex())).
				WithDetail("creator", creator.Account.Hex())
		}
	}
	return nil
}

func recoverSigner(hash, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes", crypto.SignatureLength)
	}
	sig := common.CopyBytes(signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func invalidProof(t order.AssetType, message string) *clierr.Error {
	return clierr.New(clierr.CodeInvalidLazyProof, message).
		WithDetail("asset_class", string(t.AssetClass)).
		WithDetail("contract", t.Contract.Hex())
}
