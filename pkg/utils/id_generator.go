package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// IDGenerator produces the identifiers used across the ledger: prefixed
// ULID entity ids, numeric account numbers and Luhn-valid card numbers.
type IDGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// newULID generates a monotonic ULID (26 chars, sortable, URL-safe).
func (g *IDGenerator) newULID() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
	return id.String()
}

// AccountID generates an account entity id.
// Format: acc_{ULID}
func (g *IDGenerator) AccountID() string {
	return "acc_" + g.newULID()
}

// CardID generates a card entity id.
// Format: card_{ULID}
func (g *IDGenerator) CardID() string {
	return "card_" + g.newULID()
}

// TransactionID generates a transaction entity id.
// Format: txn_{ULID}
func (g *IDGenerator) TransactionID() string {
	return "txn_" + g.newULID()
}

// BeneficiaryID generates a beneficiary entity id.
// Format: ben_{ULID}
func (g *IDGenerator) BeneficiaryID() string {
	return "ben_" + g.newULID()
}

// AccountNumber generates a customer-facing account number.
// Format: ACC-{16 digits}, last digit is a Luhn checksum
func (g *IDGenerator) AccountNumber() string {
	base := randomDigits(15)
	return fmt.Sprintf("ACC-%s%d", base, luhnChecksum(base))
}

// CardNumber generates a Luhn-valid 16-digit virtual card number.
func (g *IDGenerator) CardNumber() string {
	base := randomDigits(15)
	return fmt.Sprintf("%s%d", base, luhnChecksum(base))
}

// CardExpiry formats an expiry date years from now.
// Format: MM/YY
func CardExpiry(now time.Time, years int) string {
	exp := now.AddDate(years, 0, 0)
	return fmt.Sprintf("%02d/%02d", int(exp.Month()), exp.Year()%100)
}

// randomDigits generates n random decimal digits via crypto/rand.
func randomDigits(n int) string {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		num, _ := rand.Int(rand.Reader, big.NewInt(10))
		b.WriteByte(byte('0' + num.Int64()))
	}
	return b.String()
}

// luhnChecksum calculates the Luhn checksum digit for a numeric string.
func luhnChecksum(s string) int {
	sum := 0
	double := true

	for i := len(s) - 1; i >= 0; i-- {
		digit := int(s[i] - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}

	return (10 - (sum % 10)) % 10
}

// ValidateLuhn reports whether a numeric string (dashes ignored) has a
// valid Luhn checksum.
func ValidateLuhn(number string) bool {
	digits := extractNumeric(number)
	if len(digits) < 2 {
		return false
	}
	payload, check := digits[:len(digits)-1], digits[len(digits)-1:]
	want, err := strconv.Atoi(check)
	if err != nil {
		return false
	}
	return luhnChecksum(payload) == want
}

// extractNumeric keeps only the decimal digits of s.
func extractNumeric(s string) string {
	var result strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			result.WriteRune(c)
		}
	}
	return result.String()
}
