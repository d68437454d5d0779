// Package crypto implements the secure envelope: keypair generation,
// hashing, signing, X.509 certificate validation and the SecureMessage
// wrapper with its replay cache. It is grounded on the wrapping style of
// munonun-Web4's internal/crypto package, generalized from a fixed RSA-PSS
// suite to the {ECDSA, RSA-PSS} pair the specification calls for, with
// ECDSA as the default.
package crypto

import (
	stdcrypto "crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"

	"vanet-secure-routing/internal/vanet"
)

const cryptoSHA256 = stdcrypto.SHA256

// KeyAlgorithm selects the asymmetric primitive backing a vehicle's
// identity key.
type KeyAlgorithm int

const (
	KeyECDSA KeyAlgorithm = iota
	KeyRSAPSS
)

// RSAKeyBits is the minimum modulus size the specification requires for
// RSA-PSS keys.
const RSAKeyBits = 2048

// KeyPair holds a private key together with its DER SubjectPublicKeyInfo
// encoding, keeping the raw handle behind methods rather than exposing it.
type KeyPair struct {
	algorithm KeyAlgorithm
	ecdsaKey  *ecdsa.PrivateKey
	rsaKey    *rsa.PrivateKey
	pubDER    []byte
}

// GenerateKeyPair produces a fresh keypair using algo. On failure it
// returns vanet.ErrKeyGenFailed and no partial key is retained.
func GenerateKeyPair(algo KeyAlgorithm) (*KeyPair, error) {
	switch algo {
	case KeyRSAPSS:
		priv, err := rsa.GenerateKey(rand.Reader, RSAKeyBits)
		if err != nil {
			return nil, vanet.NewError(vanet.ErrKeyGenFailed, "")
		}
		pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
		if err != nil {
			return nil, vanet.NewError(vanet.ErrKeyGenFailed, "")
		}
		return &KeyPair{algorithm: KeyRSAPSS, rsaKey: priv, pubDER: pubDER}, nil
	default:
		priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, vanet.NewError(vanet.ErrKeyGenFailed, "")
		}
		pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
		if err != nil {
			return nil, vanet.NewError(vanet.ErrKeyGenFailed, "")
		}
		return &KeyPair{algorithm: KeyECDSA, ecdsaKey: priv, pubDER: pubDER}, nil
	}
}

// PublicKeyDER returns the DER SubjectPublicKeyInfo encoding of the public
// half of the pair.
func (k *KeyPair) PublicKeyDER() []byte {
	out := make([]byte, len(k.pubDER))
	copy(out, k.pubDER)
	return out
}

// signDigest signs a pre-computed digest with the pair's private key. The
// digest is always SHA-256 per the envelope's internal binding.
func (k *KeyPair) signDigest(digest []byte) ([]byte, error) {
	if k == nil {
		return nil, vanet.NewError(vanet.ErrNoPrivateKey, "")
	}
	switch k.algorithm {
	case KeyRSAPSS:
		if k.rsaKey == nil {
			return nil, vanet.NewError(vanet.ErrNoPrivateKey, "")
		}
		return rsa.SignPSS(rand.Reader, k.rsaKey, cryptoSHA256, digest, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash})
	default:
		if k.ecdsaKey == nil {
			return nil, vanet.NewError(vanet.ErrNoPrivateKey, "")
		}
		return ecdsa.SignASN1(rand.Reader, k.ecdsaKey, digest)
	}
}

// VerifyWithDER verifies sig over digest using a DER SubjectPublicKeyInfo
// encoded public key. It never panics or returns an error: any parse or
// verification failure simply yields false, per the specification.
func VerifyWithDER(pubDER, digest, sig []byte) bool {
	key, err := x509.ParsePKIXPublicKey(pubDER)
	if err != nil {
		return false
	}
	return verifyWithKey(key, digest, sig)
}

func verifyWithKey(pub any, digest, sig []byte) bool {
	switch k := pub.(type) {
	case *ecdsa.PublicKey:
		return ecdsa.VerifyASN1(k, digest, sig)
	case *rsa.PublicKey:
		return rsa.VerifyPSS(k, cryptoSHA256, digest, sig, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash}) == nil
	default:
		return false
	}
}

// Zeroize best-effort scrubs the private scalar material on shutdown. Go's
// GC-managed big.Int does not guarantee erasure, but this mirrors the
// "guaranteed single release path" discipline the specification asks for.
func (k *KeyPair) Zeroize() {
	if k == nil {
		return
	}
	k.ecdsaKey = nil
	k.rsaKey = nil
}
