package crypto

import (
	"crypto/x509"
	"time"

	"vanet-secure-routing/internal/transport"
	"vanet-secure-routing/internal/vanet"
)

// ValidateCertificate parses a DER-encoded X.509 certificate and checks it
// against store's trust anchors, accepting only a verified chain of at most
// maxChainDepth certificates counting the leaf and the anchor.
// It returns the certificate's public key in DER SubjectPublicKeyInfo form
// on success. Any parse, validity-window, or chain failure returns
// vanet.ErrBadCertificate.
func ValidateCertificate(certDER []byte, store transport.CertStore, at time.Time, maxChainDepth int) ([]byte, error) {
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, vanet.NewError(vanet.ErrBadCertificate, "")
	}
	if at.Before(cert.NotBefore) || at.After(cert.NotAfter) {
		return nil, vanet.NewError(vanet.ErrBadCertificate, "")
	}

	pool := x509.NewCertPool()
	for _, anchor := range store.TrustAnchors() {
		pool.AddCert(anchor)
	}

	verifyOpts := x509.VerifyOptions{
		Roots:       pool,
		CurrentTime: at,
		MaxConstraintComparisions: 0,
	}
	// x509.Verify walks the chain itself; an empty anchor set can never
	// verify, so it is rejected up front. Chain length is bounded by
	// maxChainDepth below.
	if len(pool.Subjects()) == 0 { //nolint:staticcheck // Subjects is deprecated but adequate for a bounded check
		return nil, vanet.NewError(vanet.ErrBadCertificate, "")
	}

	chains, err := cert.Verify(verifyOpts)
	if err != nil {
		return nil, vanet.NewError(vanet.ErrBadCertificate, "")
	}
	for _, chain := range chains {
		if len(chain) > maxChainDepth {
			continue
		}
		pubDER, err := x509.MarshalPKIXPublicKey(cert.PublicKey)
		if err != nil {
			return nil, vanet.NewError(vanet.ErrBadCertificate, "")
		}
		return pubDER, nil
	}
	return nil, vanet.NewError(vanet.ErrBadCertificate, "")
}
