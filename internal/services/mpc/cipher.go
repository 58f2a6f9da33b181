package mpc

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"ShadowTrade/internal/domain/models"
)

const (
	infoInput  = "shadowtrade/mpc/input"
	infoOutput = "shadowtrade/mpc/output"
)

var errMalformedPayload = errors.New("malformed encrypted payload")

// KeyPair is an X25519 key pair.
type KeyPair struct {
	Public  []byte
	Private []byte
}

// GenerateKeyPair draws a fresh X25519 key pair from r (crypto/rand when nil).
func GenerateKeyPair(r io.Reader) (KeyPair, error) {
	if r == nil {
		r = rand.Reader
	}
	priv := make([]byte, curve25519.ScalarSize)
	if _, err := io.ReadFull(r, priv); err != nil {
		return KeyPair{}, fmt.Errorf("read key material: %w", err)
	}
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return KeyPair{}, fmt.Errorf("derive public key: %w", err)
	}
	return KeyPair{Public: pub, Private: priv}, nil
}

// ParsePublicKey decodes a hex X25519 public key.
func ParsePublicKey(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode cluster key: %w", err)
	}
	if len(b) != curve25519.PointSize {
		return nil, fmt.Errorf("cluster key must be %d bytes, got %d", curve25519.PointSize, len(b))
	}
	return b, nil
}

// Exchange holds the keys of one computation: the client encrypts its
// inputs under it and opens the network's output with it. A new Exchange
// is created for every submission, so ciphertexts never share a key.
type Exchange struct {
	clientPub []byte
	inKey     []byte
	outKey    []byte
	rand      io.Reader
}

// NewClientExchange draws an ephemeral key pair and agrees keys with the
// cluster public key.
func NewClientExchange(clusterPub []byte, r io.Reader) (*Exchange, error) {
	if r == nil {
		r = rand.Reader
	}
	eph, err := GenerateKeyPair(r)
	if err != nil {
		return nil, err
	}
	shared, err := curve25519.X25519(eph.Private, clusterPub)
	if err != nil {
		return nil, fmt.Errorf("key agreement: %w", err)
	}
	return newExchange(shared, eph.Public, clusterPub, r)
}

// NewClusterExchange is the network side of NewClientExchange, keyed by the
// client's ephemeral public key carried in the payload.
func NewClusterExchange(cluster KeyPair, clientPub []byte, r io.Reader) (*Exchange, error) {
	if r == nil {
		r = rand.Reader
	}
	if len(clientPub) != curve25519.PointSize {
		return nil, errMalformedPayload
	}
	shared, err := curve25519.X25519(cluster.Private, clientPub)
	if err != nil {
		return nil, fmt.Errorf("key agreement: %w", err)
	}
	return newExchange(shared, clientPub, cluster.Public, r)
}

func newExchange(shared, clientPub, clusterPub []byte, r io.Reader) (*Exchange, error) {
	salt := make([]byte, 0, len(clientPub)+len(clusterPub))
	salt = append(salt, clientPub...)
	salt = append(salt, clusterPub...)

	inKey := make([]byte, chacha20poly1305.KeySize)
	outKey := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, salt, []byte(infoInput)), inKey); err != nil {
		return nil, fmt.Errorf("derive input key: %w", err)
	}
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, salt, []byte(infoOutput)), outKey); err != nil {
		return nil, fmt.Errorf("derive output key: %w", err)
	}
	return &Exchange{clientPub: append([]byte(nil), clientPub...), inKey: inKey, outKey: outKey, rand: r}, nil
}

// SealInput encrypts plaintext inputs under a fresh random nonce.
func (e *Exchange) SealInput(schema string, plaintext []byte) (models.EncryptedPayload, error) {
	return e.seal(e.inKey, schema, plaintext)
}

// OpenInput decrypts inputs on the network side.
func (e *Exchange) OpenInput(p models.EncryptedPayload) ([]byte, error) {
	return e.open(e.inKey, p)
}

// SealOutput encrypts the network's result for the client.
func (e *Exchange) SealOutput(schema string, plaintext []byte) (models.EncryptedPayload, error) {
	return e.seal(e.outKey, schema, plaintext)
}

// OpenOutput decrypts the network's result on the client side.
func (e *Exchange) OpenOutput(p models.EncryptedPayload) ([]byte, error) {
	return e.open(e.outKey, p)
}

func (e *Exchange) seal(key []byte, schema string, plaintext []byte) (models.EncryptedPayload, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return models.EncryptedPayload{}, fmt.Errorf("init aead: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(e.rand, nonce); err != nil {
		return models.EncryptedPayload{}, fmt.Errorf("read nonce: %w", err)
	}
	return models.EncryptedPayload{
		Schema:          schema,
		ClientPublicKey: e.clientPub,
		Nonce:           nonce,
		Ciphertext:      aead.Seal(nil, nonce, plaintext, []byte(schema)),
	}, nil
}

func (e *Exchange) open(key []byte, p models.EncryptedPayload) ([]byte, error) {
	if len(p.Nonce) != chacha20poly1305.NonceSizeX || len(p.Ciphertext) < chacha20poly1305.Overhead {
		return nil, errMalformedPayload
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init aead: %w", err)
	}
	pt, err := aead.Open(nil, p.Nonce, p.Ciphertext, []byte(p.Schema))
	if err != nil {
		return nil, fmt.Errorf("open payload: %w", err)
	}
	return pt, nil
}
