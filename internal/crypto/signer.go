package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Signer signs CLOB order payloads with an Ethereum key using EIP-191
// personal-sign semantics.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    int
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key and
// the target chain ID (137 for Polygon mainnet, 80002 for Amoy testnet).
func NewSigner(privateKeyHex string, chainID int) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}

	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
		chainID:    chainID,
	}, nil
}

// Address returns the Ethereum address derived from the signer's private key.
func (s *Signer) Address() common.Address {
	return s.address
}

// ChainID returns the chain the signer targets.
func (s *Signer) ChainID() int {
	return s.chainID
}

// SignMessage signs an arbitrary message with the EIP-191 prefix
// ("\x19Ethereum Signed Message:\n" + len(message)) and returns a hex-encoded
// 65-byte signature (r || s || v).
func (s *Signer) SignMessage(message []byte) (string, error) {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	digest := ethcrypto.Keccak256([]byte(prefixed))

	sig, err := ethcrypto.Sign(digest, s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: signing: %w", err)
	}

	// go-ethereum returns v in {0,1}; the API expects v in {27,28}.
	if sig[64] < 27 {
		sig[64] += 27
	}

	return "0x" + hex.EncodeToString(sig), nil
}

// SignOrderPayload canonicalizes an order payload as JSON with sorted keys
// and signs it. The CLOB verifies the same canonical form server-side, so
// key ordering must be deterministic.
func (s *Signer) SignOrderPayload(payload map[string]any) (string, error) {
	// encoding/json marshals map keys in sorted order.
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: marshal payload: %w", err)
	}
	return s.SignMessage(data)
}
