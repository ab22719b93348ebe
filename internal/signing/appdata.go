package signing

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vaultswap/vaultswapd/pkg/helpers"
)

// AppCode identifies orders placed by this daemon in the orderbook.
const AppCode = "VaultSwap"

// AppDataVersion is the app-data document schema version.
const AppDataVersion = "1.1.0"

// permitHookGasLimit is the gas budget the solver gets for the permit
// pre-hook. A CBBTC permit costs well under this.
const permitHookGasLimit = "80000"

// AppDataDoc is a canonically serialized app-data document and the hash
// that commits to it. The hash goes into the signed order; the document
// itself is uploaded to the orderbook beforehand.
type AppDataDoc struct {
	json []byte
	hash common.Hash
}

// JSON returns the canonical serialization.
func (d *AppDataDoc) JSON() string {
	return string(d.json)
}

// Hash returns keccak256 of the canonical serialization.
func (d *AppDataDoc) Hash() common.Hash {
	return d.hash
}

// BuildAppData assembles the app-data document for one order: a single
// permit pre-hook against the sell token, market order class, and the
// slippage tolerance the buy amount was adjusted with.
func BuildAppData(sellToken common.Address, permitCalldata []byte, slippageBps int64) (*AppDataDoc, error) {
	doc := map[string]any{
		"version": AppDataVersion,
		"appCode": AppCode,
		"metadata": map[string]any{
			"hooks": map[string]any{
				"pre": []any{
					map[string]any{
						"target":   sellToken.Hex(),
						"callData": helpers.BytesToHex(permitCalldata),
						"gasLimit": permitHookGasLimit,
					},
				},
			},
			"orderClass": map[string]any{
				"orderClass": "market",
			},
			"quote": map[string]any{
				"slippageBips":  slippageBps,
				"smartSlippage": true,
			},
		},
	}

	data, err := CanonicalJSON(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize app data: %w", err)
	}

	return &AppDataDoc{
		json: data,
		hash: common.BytesToHash(Keccak256(data)),
	}, nil
}

// CanonicalJSON serializes a value deterministically: object keys sorted
// recursively, no inserted whitespace, integers in decimal. The app-data
// hash commits to these exact bytes, so the encoding cannot be left to
// map iteration order or encoder defaults.
func CanonicalJSON(v any) ([]byte, error) {
	var buf []byte
	return appendCanonical(buf, v)
}

func appendCanonical(buf []byte, v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf = append(buf, '{')
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			keyJSON, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf = append(buf, keyJSON...)
			buf = append(buf, ':')
			buf, err = appendCanonical(buf, val[k])
			if err != nil {
				return nil, err
			}
		}
		return append(buf, '}'), nil

	case []any:
		buf = append(buf, '[')
		var err error
		for i, item := range val {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf, err = appendCanonical(buf, item)
			if err != nil {
				return nil, err
			}
		}
		return append(buf, ']'), nil

	case nil, bool, string, int, int64, uint64, json.Number:
		data, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		return append(buf, data...), nil

	default:
		return nil, fmt.Errorf("unsupported type %T in canonical json", v)
	}
}
