package domain

// AddressInfo holds info about a derived address of an account, along with
// the number of transactions the chain knows for it.
type AddressInfo struct {
	Address        string
	DerivationPath string
	Change         bool
	Index          uint32
	TxCount        int
}

// HistoryTx is one entry of an account's transaction history.
type HistoryTx struct {
	TxID        string
	BlockHeight uint32
	Amount      int64
}

// Balance holds the confirmed and unconfirmed balance of an account in the
// chain's base unit.
type Balance struct {
	Confirmed   int64
	Unconfirmed int64
}

// ChainTip marks the chain height and block hash an account snapshot was
// taken at.
type ChainTip struct {
	Height uint32
	Hash   string
}

// AccountSnapshot is the accumulated result of a discovery run for one
// account. It is produced by a completed discovery and consumed as a resume
// hint by later discovery or monitoring calls.
type AccountSnapshot struct {
	Xpub      string
	Addresses []AddressInfo
	Balance   Balance
	History   []HistoryTx
	Tip       ChainTip
}

// UsedAddresses returns the addresses of the snapshot with at least one
// transaction in their history.
func (s *AccountSnapshot) UsedAddresses() []AddressInfo {
	used := make([]AddressInfo, 0, len(s.Addresses))
	for _, info := range s.Addresses {
		if info.TxCount > 0 {
			used = append(used, info)
		}
	}
	return used
}

// NextIndex returns the next unscanned address index for the external or
// internal branch of the snapshot's account.
func (s *AccountSnapshot) NextIndex(change bool) uint32 {
	var next uint32
	for _, info := range s.Addresses {
		if info.Change != change {
			continue
		}
		if info.Index+1 > next {
			next = info.Index + 1
		}
	}
	return next
}

// DiscoveryProgress is emitted by a discovery session after each scanned
// batch of addresses.
type DiscoveryProgress struct {
	Change           bool
	Batch            int
	AddressesScanned int
	TxsFound         int
}
