package domain

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// SegwitMode tells the discovery engine which address encoding to derive
// and query for an account.
type SegwitMode string

const (
	// SegwitP2SH derives P2SH-wrapped P2WPKH addresses.
	SegwitP2SH SegwitMode = "p2sh"
	// SegwitOff derives legacy P2PKH addresses.
	SegwitOff SegwitMode = "off"
)

// NetworkDescriptor identifies the coin/network served by a connected
// backend. It is resolved once per coordinator lifetime, either supplied
// explicitly or looked up by genesis block hash.
type NetworkDescriptor struct {
	Name   string
	Params *chaincfg.Params
	// Segwit marks networks supporting segregated witness, discovery
	// derives P2SH-wrapped witness addresses for them.
	Segwit bool
	// UsesCashAddr marks networks whose addresses use the alternate
	// cashaddr encoding scheme.
	UsesCashAddr bool
}

func (n *NetworkDescriptor) GenesisHash() *chainhash.Hash {
	return n.Params.GenesisHash
}

// SegwitMode returns the address derivation mode discovery must use for
// this network.
func (n *NetworkDescriptor) SegwitMode() SegwitMode {
	if n.Segwit {
		return SegwitP2SH
	}
	return SegwitOff
}

func (n *NetworkDescriptor) Matches(other *NetworkDescriptor) bool {
	if other == nil {
		return false
	}
	return n.GenesisHash().IsEqual(other.GenesisHash())
}

var (
	MainNetwork = &NetworkDescriptor{
		Name:   "bitcoin",
		Params: &chaincfg.MainNetParams,
		Segwit: true,
	}
	TestNetwork = &NetworkDescriptor{
		Name:   "testnet",
		Params: &chaincfg.TestNet3Params,
		Segwit: true,
	}
	RegtestNetwork = &NetworkDescriptor{
		Name:   "regtest",
		Params: &chaincfg.RegressionNetParams,
		Segwit: true,
	}
	SimNetwork = &NetworkDescriptor{
		Name:   "simnet",
		Params: &chaincfg.SimNetParams,
		Segwit: true,
	}

	knownNetworks = []*NetworkDescriptor{
		MainNetwork, TestNetwork, RegtestNetwork, SimNetwork,
	}
)

// NetworkByGenesisHash returns the known network whose genesis block hash
// matches the given one, or nil if none does.
func NetworkByGenesisHash(hash *chainhash.Hash) *NetworkDescriptor {
	if hash == nil {
		return nil
	}
	for _, n := range knownNetworks {
		if n.GenesisHash().IsEqual(hash) {
			return n
		}
	}
	return nil
}

// NetworkByName returns the known network with the given name, or nil if
// none does.
func NetworkByName(name string) *NetworkDescriptor {
	for _, n := range knownNetworks {
		if n.Name == name {
			return n
		}
	}
	return nil
}
