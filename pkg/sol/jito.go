package sol

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	jitorpc "github.com/jito-labs/jito-go-rpc"
	"github.com/mr-tron/base58"
)

// Jito tip accounts. Any of them works; bundles tip the first one.
var tipAccounts = []string{
	"96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5",
	"HFqU5x63VTqvQss8hp11i4wVV8bD44PvwucfZ2bU7gRe",
	"Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY",
	"ADaUMid9yfUytqMBgopwjb2DTLSokTSzL1zt6iGPaS49",
}

// JitoRelay submits swap legs as one atomic bundle through a Jito block
// engine, appending a tip transfer as the bundle's final transaction.
// It implements pkg.BundleSubmitter.
type JitoRelay struct {
	client     *jitorpc.JitoJsonRpcClient
	pool       *RPCPool
	signer     solana.PrivateKey
	tipAccount solana.PublicKey
}

// NewJitoRelay connects to a block engine. The signer key is the base58
// encoded private key that pays tips.
func NewJitoRelay(blockEngineURL string, pool *RPCPool, signerKey string) (*JitoRelay, error) {
	raw, err := base58.Decode(signerKey)
	if err != nil {
		return nil, fmt.Errorf("decode signer key: %w", err)
	}
	if len(raw) != 64 {
		return nil, fmt.Errorf("signer key has %d bytes, want 64", len(raw))
	}
	signer := solana.PrivateKey(raw)
	return &JitoRelay{
		client:     jitorpc.NewJitoJsonRpcClient(blockEngineURL, ""),
		pool:       pool,
		signer:     signer,
		tipAccount: solana.MustPublicKeyFromBase58(tipAccounts[0]),
	}, nil
}

// Signer returns the public key legs must be built for.
func (r *JitoRelay) Signer() solana.PublicKey {
	return r.signer.PublicKey()
}

// Submit encodes the legs, appends the tip transfer and sends the
// bundle. The returned string is the block engine's bundle id.
func (r *JitoRelay) Submit(ctx context.Context, legs [][]byte, tipLamports uint64) (string, error) {
	if len(legs) == 0 {
		return "", fmt.Errorf("empty bundle")
	}

	txs := make([]string, 0, len(legs)+1)
	for _, leg := range legs {
		txs = append(txs, base58.Encode(leg))
	}

	tipTx, err := r.buildTipTx(ctx, tipLamports)
	if err != nil {
		return "", err
	}
	txs = append(txs, base58.Encode(tipTx))

	result, err := r.client.SendBundle([][]string{txs})
	if err != nil {
		return "", fmt.Errorf("send bundle: %w", err)
	}
	var bundleID string
	if err := json.Unmarshal(result, &bundleID); err != nil {
		return "", fmt.Errorf("decode bundle id: %w", err)
	}
	return bundleID, nil
}

func (r *JitoRelay) buildTipTx(ctx context.Context, lamports uint64) ([]byte, error) {
	conn, err := r.pool.Next().RPC(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := conn.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, fmt.Errorf("tip blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(lamports, r.signer.PublicKey(), r.tipAccount).Build(),
		},
		recent.Value.Blockhash,
		solana.TransactionPayer(r.signer.PublicKey()),
	)
	if err != nil {
		return nil, fmt.Errorf("build tip tx: %w", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(r.signer.PublicKey()) {
			return &r.signer
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("sign tip tx: %w", err)
	}
	return tx.MarshalBinary()
}
