package shield

import (
	"crypto/x509"
	"time"

	"github.com/coreweb/engine/cmn"
)

// ValidateCertificate applies cert-chain scrutiny scaled by level
// (spec.md §4.8: "validate certificate (level ∈ {Standard, High,
// Maximum})"). Standard defers entirely to the TLS stack's own
// verification (already done by the time a response reaches here).
// High additionally rejects certificates expiring within 7 days. Maximum
// further requires the leaf to carry at least one DNS SAN matching host
// and rejects any chain containing a certificate with a > 398 day
// validity period (a CA/Browser Forum baseline-requirements tell for
// non-conforming or misissued certificates).
func ValidateCertificate(chain []*x509.Certificate, host string, level Level, now time.Time) error {
	if len(chain) == 0 {
		return cmn.New(cmn.KindNetwork, "empty-certificate-chain")
	}
	leaf := chain[0]

	if level == LevelStandard {
		return nil
	}

	if level == LevelHigh || level == LevelMaximum || level == LevelCustom {
		if leaf.NotAfter.Before(now.Add(7 * 24 * time.Hour)) {
			return cmn.New(cmn.KindNetwork, "certificate-near-expiry").WithContext("not_after", leaf.NotAfter)
		}
	}

	if level == LevelMaximum {
		if !hasMatchingSAN(leaf, host) {
			return cmn.New(cmn.KindNetwork, "certificate-san-mismatch").WithContext("host", host)
		}
		for _, c := range chain {
			if c.NotAfter.Sub(c.NotBefore) > 398*24*time.Hour {
				return cmn.New(cmn.KindNetwork, "certificate-excess-validity").WithContext("subject", c.Subject.CommonName)
			}
		}
	}

	return nil
}

func hasMatchingSAN(cert *x509.Certificate, host string) bool {
	if err := cert.VerifyHostname(host); err == nil {
		return true
	}
	for _, name := range cert.DNSNames {
		if name == host {
			return true
		}
	}
	return false
}
