package swap

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/lightningnetwork/lnd/input"
	"github.com/lightningnetwork/lnd/lntypes"
)

// Htlc is the hash and time locked contract that holds the foreign leg of a
// swap. The receiver can claim it with the swap secret, the sender can take
// it back once the chain reaches the lock height.
type Htlc struct {
	// Script is the witness script of the contract.
	Script []byte

	// PkScript is the p2wsh output script funding the contract.
	PkScript []byte

	// Address is the p2wsh address of the contract.
	Address btcutil.Address

	// Hash is the hash lock shared with the BEAM leg.
	Hash lntypes.Hash

	// LockHeight is the foreign chain height from which the sender can
	// refund.
	LockHeight int32
}

// NewHtlc builds the contract script:
//
// OP_IF
//
//	OP_SIZE 32 OP_EQUALVERIFY OP_SHA256 <hash> OP_EQUALVERIFY <receiverKey>
//
// OP_ELSE
//
//	<lock height> OP_CHECKLOCKTIMEVERIFY OP_DROP <senderKey>
//
// OP_ENDIF
// OP_CHECKSIG
func NewHtlc(lockHeight int32, senderKey, receiverKey [33]byte,
	hash lntypes.Hash, chainParams *chaincfg.Params) (*Htlc, error) {

	builder := txscript.NewScriptBuilder()

	builder.AddOp(txscript.OP_IF)
	builder.AddOp(txscript.OP_SIZE)
	builder.AddInt64(0x20)
	builder.AddOp(txscript.OP_EQUALVERIFY)
	builder.AddOp(txscript.OP_SHA256)
	builder.AddData(hash[:])
	builder.AddOp(txscript.OP_EQUALVERIFY)
	builder.AddData(receiverKey[:])

	builder.AddOp(txscript.OP_ELSE)
	builder.AddInt64(int64(lockHeight))
	builder.AddOp(txscript.OP_CHECKLOCKTIMEVERIFY)
	builder.AddOp(txscript.OP_DROP)
	builder.AddData(senderKey[:])

	builder.AddOp(txscript.OP_ENDIF)
	builder.AddOp(txscript.OP_CHECKSIG)

	script, err := builder.Script()
	if err != nil {
		return nil, err
	}

	pkScript, err := input.WitnessScriptHash(script)
	if err != nil {
		return nil, err
	}

	address, err := btcutil.NewAddressWitnessScriptHash(
		pkScript[2:], chainParams,
	)
	if err != nil {
		return nil, fmt.Errorf("could not get address: %w", err)
	}

	return &Htlc{
		Script:     script,
		PkScript:   pkScript,
		Address:    address,
		Hash:       hash,
		LockHeight: lockHeight,
	}, nil
}
