package pump

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Builders for the program's instructions. Account lists must stay in the
// exact order the handlers read them.

func instructionData(d Discriminator, args interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(d[:])
	if args != nil {
		if err := bin.NewBorshEncoder(buf).Encode(args); err != nil {
			return nil, fmt.Errorf("encode instruction args: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// NewConfigureInstruction builds configure(new_config).
func NewConfigureInstruction(programID, admin solana.PublicKey, cfg *Config) (solana.Instruction, error) {
	globalConfig, _, err := FindGlobalConfigAddress(programID)
	if err != nil {
		return nil, err
	}
	data, err := instructionData(configureDiscriminator, cfg)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		{PublicKey: admin, IsSigner: true, IsWritable: true},
		{PublicKey: globalConfig, IsWritable: true},
		{PublicKey: solana.SystemProgramID},
	}, data), nil
}

// NewLaunchInstruction builds launch(name, symbol, uri). mint must sign the
// transaction alongside creator.
func NewLaunchInstruction(programID, creator, mint solana.PublicKey, args LaunchArgs) (solana.Instruction, error) {
	globalConfig, _, err := FindGlobalConfigAddress(programID)
	if err != nil {
		return nil, err
	}
	accts, err := DeriveCurveAccounts(programID, mint)
	if err != nil {
		return nil, err
	}
	data, err := instructionData(launchDiscriminator, &args)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		{PublicKey: creator, IsSigner: true, IsWritable: true},
		{PublicKey: globalConfig},
		{PublicKey: mint, IsSigner: true, IsWritable: true},
		{PublicKey: accts.BondingCurve, IsWritable: true},
		{PublicKey: accts.TokenAccount, IsWritable: true},
		{PublicKey: solana.SystemProgramID},
		{PublicKey: solana.TokenProgramID},
		{PublicKey: solana.SPLAssociatedTokenAccountProgramID},
	}, data), nil
}

// NewSwapInstruction builds swap(amount, direction, min_out).
func NewSwapInstruction(programID, user, feeRecipient, mint solana.PublicKey, amount uint64, direction Direction, minOut uint64) (solana.Instruction, error) {
	globalConfig, _, err := FindGlobalConfigAddress(programID)
	if err != nil {
		return nil, err
	}
	accts, err := DeriveCurveAccounts(programID, mint)
	if err != nil {
		return nil, err
	}
	userATA, _, err := solana.FindAssociatedTokenAddress(user, mint)
	if err != nil {
		return nil, err
	}

	data := make([]byte, 0, 8+17)
	data = append(data, swapDiscriminator[:]...)
	data = binary.LittleEndian.AppendUint64(data, amount)
	data = append(data, uint8(direction))
	data = binary.LittleEndian.AppendUint64(data, minOut)

	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		{PublicKey: user, IsSigner: true, IsWritable: true},
		{PublicKey: globalConfig},
		{PublicKey: feeRecipient, IsWritable: true},
		{PublicKey: mint},
		{PublicKey: accts.BondingCurve, IsWritable: true},
		{PublicKey: accts.TokenAccount, IsWritable: true},
		{PublicKey: userATA, IsWritable: true},
		{PublicKey: solana.TokenProgramID},
		{PublicKey: solana.SPLAssociatedTokenAccountProgramID},
		{PublicKey: solana.SystemProgramID},
	}, data), nil
}

// NewMigrateInstruction builds migrate(nonce). remaining carries the
// adapter's accounts; they are passed writable.
func NewMigrateInstruction(programID, payer, mint, adapterProgram solana.PublicKey, nonce uint8, remaining ...*solana.AccountMeta) (solana.Instruction, error) {
	globalConfig, _, err := FindGlobalConfigAddress(programID)
	if err != nil {
		return nil, err
	}
	accts, err := DeriveCurveAccounts(programID, mint)
	if err != nil {
		return nil, err
	}
	metas := solana.AccountMetaSlice{
		{PublicKey: payer, IsSigner: true, IsWritable: true},
		{PublicKey: globalConfig, IsWritable: true},
		{PublicKey: mint},
		{PublicKey: accts.BondingCurve, IsWritable: true},
		{PublicKey: accts.TokenAccount, IsWritable: true},
		{PublicKey: accts.WSOLAccount, IsWritable: true},
		{PublicKey: solana.SolMint},
		{PublicKey: adapterProgram},
		{PublicKey: solana.TokenProgramID},
		{PublicKey: solana.SPLAssociatedTokenAccountProgramID},
		{PublicKey: solana.SystemProgramID},
	}
	metas = append(metas, remaining...)

	data := make([]byte, 0, 9)
	data = append(data, migrateDiscriminator[:]...)
	data = append(data, nonce)
	return solana.NewInstruction(programID, metas, data), nil
}

// NewReleaseReservesInstruction builds release_reserves(). feeRecipient is
// optional; when set it is checked against the config.
func NewReleaseReservesInstruction(programID, admin, mint, recipient solana.PublicKey, feeRecipient *solana.PublicKey) (solana.Instruction, error) {
	globalConfig, _, err := FindGlobalConfigAddress(programID)
	if err != nil {
		return nil, err
	}
	accts, err := DeriveCurveAccounts(programID, mint)
	if err != nil {
		return nil, err
	}
	recipientATA, _, err := solana.FindAssociatedTokenAddress(recipient, mint)
	if err != nil {
		return nil, err
	}
	metas := solana.AccountMetaSlice{
		{PublicKey: admin, IsSigner: true, IsWritable: true},
		{PublicKey: globalConfig},
		{PublicKey: mint},
		{PublicKey: accts.BondingCurve, IsWritable: true},
		{PublicKey: accts.TokenAccount, IsWritable: true},
		{PublicKey: recipient, IsWritable: true},
		{PublicKey: recipientATA, IsWritable: true},
		{PublicKey: solana.TokenProgramID},
		{PublicKey: solana.SPLAssociatedTokenAccountProgramID},
		{PublicKey: solana.SystemProgramID},
	}
	if feeRecipient != nil {
		metas = append(metas, &solana.AccountMeta{PublicKey: *feeRecipient})
	}
	return solana.NewInstruction(programID, metas, append([]byte(nil), releaseReservesDiscriminator[:]...)), nil
}
