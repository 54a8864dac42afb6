package hd_discovery

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/unchained-capital/connect/internal/core/domain"
)

const (
	externalBranch uint32 = 0
	internalBranch uint32 = 1
)

// branchDeriver derives the addresses of one chain branch (external or
// internal) of an account-level xpub.
type branchDeriver struct {
	key    *hdkeychain.ExtendedKey
	params *chaincfg.Params
	segwit domain.SegwitMode
	branch uint32
}

func newBranchDerivers(
	xpub string, network *domain.NetworkDescriptor, segwit domain.SegwitMode,
	useCashAddr bool,
) (*branchDeriver, *branchDeriver, error) {
	key, err := hdkeychain.NewKeyFromString(xpub)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid xpub: %s", err)
	}
	if key.IsPrivate() {
		return nil, nil, fmt.Errorf("expected extended public key, got private")
	}

	// Cashaddr networks have no segwit, their addresses derive from the
	// legacy encoding.
	if useCashAddr {
		segwit = domain.SegwitOff
	}

	externalKey, err := key.Derive(externalBranch)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to derive external branch: %s", err)
	}
	internalKey, err := key.Derive(internalBranch)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to derive internal branch: %s", err)
	}

	external := &branchDeriver{
		key: externalKey, params: network.Params, segwit: segwit,
		branch: externalBranch,
	}
	internal := &branchDeriver{
		key: internalKey, params: network.Params, segwit: segwit,
		branch: internalBranch,
	}
	return external, internal, nil
}

func (d *branchDeriver) isChange() bool {
	return d.branch == internalBranch
}

func (d *branchDeriver) addressAt(index uint32) (*domain.AddressInfo, error) {
	child, err := d.key.Derive(index)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to derive address at index %d: %s", index, err,
		)
	}
	pubKey, err := child.ECPubKey()
	if err != nil {
		return nil, err
	}
	pkHash := btcutil.Hash160(pubKey.SerializeCompressed())

	var addr btcutil.Address
	switch d.segwit {
	case domain.SegwitP2SH:
		witnessAddr, err := btcutil.NewAddressWitnessPubKeyHash(pkHash, d.params)
		if err != nil {
			return nil, err
		}
		script, err := txscript.PayToAddrScript(witnessAddr)
		if err != nil {
			return nil, err
		}
		addr, err = btcutil.NewAddressScriptHash(script, d.params)
		if err != nil {
			return nil, err
		}
	default:
		addr, err = btcutil.NewAddressPubKeyHash(pkHash, d.params)
		if err != nil {
			return nil, err
		}
	}

	return &domain.AddressInfo{
		Address:        addr.EncodeAddress(),
		DerivationPath: fmt.Sprintf("%d/%d", d.branch, index),
		Change:         d.isChange(),
		Index:          index,
	}, nil
}
