package crypto

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	"vanet-secure-routing/internal/vanet"
)

// HashAlgorithm is an interop tag; the envelope's internal binding always
// uses SHA-256 regardless of what a caller requests here.
type HashAlgorithm string

const (
	HashSHA256    HashAlgorithm = "SHA-256"
	HashSHA1      HashAlgorithm = "SHA-1"
	HashMD5       HashAlgorithm = "MD5"
	HashBLAKE2b   HashAlgorithm = "BLAKE2b-512"
	HashSHA3_256  HashAlgorithm = "SHA3-256"
)

// Hash returns the digest of data under algo, grounded on the SHA-3/BLAKE2b
// usage in munonun-Web4's crypto package. Unknown tags fail with
// vanet.ErrUnsupportedAlgo.
func Hash(algo HashAlgorithm, data []byte) ([]byte, error) {
	switch algo {
	case HashSHA256:
		sum := sha256.Sum256(data)
		return sum[:], nil
	case HashSHA1:
		sum := sha1.Sum(data)
		return sum[:], nil
	case HashMD5:
		sum := md5.Sum(data)
		return sum[:], nil
	case HashBLAKE2b:
		sum := blake2b.Sum512(data)
		return sum[:], nil
	case HashSHA3_256:
		sum := sha3.Sum256(data)
		return sum[:], nil
	default:
		return nil, vanet.NewError(vanet.ErrUnsupportedAlgo, "")
	}
}
