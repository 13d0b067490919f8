package pump

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// FindGlobalConfigAddress derives the singleton config PDA.
func FindGlobalConfigAddress(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress([][]byte{[]byte(GlobalConfigSeed)}, programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("derive global config: %w", err)
	}
	return addr, bump, nil
}

// FindBondingCurveAddress derives the bonding curve PDA of mint.
func FindBondingCurveAddress(programID, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress([][]byte{[]byte(BondingCurveSeed), mint[:]}, programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("derive bonding curve: %w", err)
	}
	return addr, bump, nil
}

// CurveAccounts groups the addresses that belong to one launched mint.
type CurveAccounts struct {
	Mint         solana.PublicKey
	BondingCurve solana.PublicKey
	Bump         uint8
	TokenAccount solana.PublicKey
	WSOLAccount  solana.PublicKey
}

// DeriveCurveAccounts derives the curve PDA and its associated token accounts.
func DeriveCurveAccounts(programID, mint solana.PublicKey) (*CurveAccounts, error) {
	curve, bump, err := FindBondingCurveAddress(programID, mint)
	if err != nil {
		return nil, err
	}
	tokenAccount, _, err := solana.FindAssociatedTokenAddress(curve, mint)
	if err != nil {
		return nil, fmt.Errorf("derive curve token account: %w", err)
	}
	wsolAccount, _, err := solana.FindAssociatedTokenAddress(curve, solana.SolMint)
	if err != nil {
		return nil, fmt.Errorf("derive curve wsol account: %w", err)
	}
	return &CurveAccounts{
		Mint:         mint,
		BondingCurve: curve,
		Bump:         bump,
		TokenAccount: tokenAccount,
		WSOLAccount:  wsolAccount,
	}, nil
}

func curveSignerSeeds(mint solana.PublicKey, bump uint8) [][]byte {
	return [][]byte{[]byte(BondingCurveSeed), mint[:], {bump}}
}
