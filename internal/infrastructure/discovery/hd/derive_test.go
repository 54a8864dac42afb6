package hd_discovery

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/unchained-capital/connect/internal/core/domain"
)

// Account-level xpub at m/44'/0'/0' of the well-known test mnemonic
// "abandon abandon ... about".
const testVectorXpub = "xpub6BosfCnifzxcFwrSzQiqu2DBVTshkCXacvNsWGYJVVhhawA7" +
	"d4R5WSWGFNbi8Aw6ZRc1brxMyWMzG3DSSSSoekkudhUd9yLb6qx39T9nMdj"

func TestBranchDerivers(t *testing.T) {
	t.Run("derives_legacy_addresses", func(t *testing.T) {
		external, internal, err := newBranchDerivers(
			testVectorXpub, domain.MainNetwork, domain.SegwitOff, false,
		)
		require.NoError(t, err)
		require.NotNil(t, external)
		require.NotNil(t, internal)
		require.False(t, external.isChange())
		require.True(t, internal.isChange())

		tests := []struct {
			deriver *branchDeriver
			index   uint32
			address string
			path    string
		}{
			{external, 0, "1LqBGSKuX5yYUonjxT5qGfpUsXKYYWeabA", "0/0"},
			{external, 1, "1Ak8PffB2meyfYnbXZR9EGfLfFZVpzJvQP", "0/1"},
			{external, 2, "1MNF5RSaabFwcbtJirJwKnDytsXXEsVsNb", "0/2"},
			{internal, 0, "1J3J6EvPrv8q6AC3VCjWV45Uf3nssNMRtH", "1/0"},
		}
		for _, tt := range tests {
			info, err := tt.deriver.addressAt(tt.index)
			require.NoError(t, err)
			require.Equal(t, tt.address, info.Address)
			require.Equal(t, tt.path, info.DerivationPath)
			require.Equal(t, tt.deriver.isChange(), info.Change)
			require.Equal(t, tt.index, info.Index)
			require.Zero(t, info.TxCount)
		}
	})

	t.Run("derives_nested_segwit_addresses", func(t *testing.T) {
		external, _, err := newBranchDerivers(
			testVectorXpub, domain.MainNetwork, domain.SegwitP2SH, false,
		)
		require.NoError(t, err)

		legacyExternal, _, err := newBranchDerivers(
			testVectorXpub, domain.MainNetwork, domain.SegwitOff, false,
		)
		require.NoError(t, err)

		seen := make(map[string]struct{})
		for index := uint32(0); index < 5; index++ {
			info, err := external.addressAt(index)
			require.NoError(t, err)
			// Mainnet P2SH addresses are base58-encoded with prefix 3.
			require.Equal(t, byte('3'), info.Address[0])

			legacyInfo, err := legacyExternal.addressAt(index)
			require.NoError(t, err)
			require.NotEqual(t, legacyInfo.Address, info.Address)

			_, ok := seen[info.Address]
			require.False(t, ok)
			seen[info.Address] = struct{}{}

			// Same key, same index, same address.
			again, err := external.addressAt(index)
			require.NoError(t, err)
			require.Equal(t, info.Address, again.Address)
		}
	})

	t.Run("cashaddr_networks_force_legacy_derivation", func(t *testing.T) {
		external, _, err := newBranchDerivers(
			testVectorXpub, domain.MainNetwork, domain.SegwitP2SH, true,
		)
		require.NoError(t, err)

		info, err := external.addressAt(0)
		require.NoError(t, err)
		require.Equal(t, "1LqBGSKuX5yYUonjxT5qGfpUsXKYYWeabA", info.Address)
	})

	t.Run("fails_with_invalid_xpub", func(t *testing.T) {
		_, _, err := newBranchDerivers(
			"not an xpub", domain.MainNetwork, domain.SegwitOff, false,
		)
		require.Error(t, err)
	})

	t.Run("fails_with_extended_private_key", func(t *testing.T) {
		xprv := "xprv9s21ZrQH143K3QTDL4LXw2F7HEK3wJUD2nW2nRk4stbPy6cq3jPPqji" +
			"ChkVvvNKmPGJxWUtg6LnF5kejMRNNU3TGtRBeJgk33yuGBxrMPHi"
		_, _, err := newBranchDerivers(
			xprv, domain.MainNetwork, domain.SegwitOff, false,
		)
		require.Error(t, err)
		require.Contains(t, err.Error(), "private")
	})
}
