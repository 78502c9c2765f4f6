package swap

import (
	"errors"

	"github.com/btcsuite/btcd/chaincfg"
)

// ChainParamsFromNetwork returns the bitcoin chain parameters of a network
// name. The foreign leg scripts are derived with these parameters.
func ChainParamsFromNetwork(network string) (*chaincfg.Params, error) {
	switch network {
	case "mainnet":
		return &chaincfg.MainNetParams, nil

	case "testnet":
		return &chaincfg.TestNet3Params, nil

	case "regtest":
		return &chaincfg.RegressionNetParams, nil

	case "simnet":
		return &chaincfg.SimNetParams, nil

	case "signet":
		return &chaincfg.SigNetParams, nil

	default:
		return nil, errors.New("unknown network")
	}
}
