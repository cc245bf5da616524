package einvoice

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuchilin/storeledger/internal/domain/entity"
)

func fixedNow() time.Time {
	return time.Date(2026, 2, 1, 12, 0, 0, 0, time.Local)
}

func validCandidate() *ParsedInvoice {
	return &ParsedInvoice{
		InvoiceNumber: "AB12345678",
		InvoiceDate:   time.Date(2026, 1, 25, 0, 0, 0, 0, time.Local),
		RandomCode:    "1234",
		SellerID:      "12345678",
		BuyerID:       "00000000",
		SalesAmount:   1000,
		TaxAmount:     50,
		TotalAmount:   1050,
	}
}

func TestValidator_Accepts(t *testing.T) {
	v := NewValidator(fixedNow)

	inv, err := v.Validate(validCandidate(), "qr-left", "qr-right")
	require.NoError(t, err)
	assert.Equal(t, "AB12345678", inv.InvoiceNumber)
	assert.Equal(t, entity.VerificationUnverified, inv.VerificationState)
	assert.Equal(t, int64(1050), inv.TotalAmount)
	assert.Equal(t, "", inv.BuyerID) // 00000000 means no buyer tax ID
	assert.Equal(t, "qr-left", inv.RawQRLeft)
	assert.Equal(t, "qr-right", inv.RawQRRight)
}

func TestValidator_Rejections(t *testing.T) {
	v := NewValidator(fixedNow)

	t.Run("arithmetic mismatch", func(t *testing.T) {
		p := validCandidate()
		p.TotalAmount = 1051
		_, err := v.Validate(p, "", "")
		require.Error(t, err)
		assert.True(t, errors.Is(err, entity.ErrArithmeticMismatch))

		var mismatch *entity.ArithmeticMismatchError
		require.True(t, errors.As(err, &mismatch))
		assert.Contains(t, mismatch.Identity, "total_amount")
	})

	t.Run("negative tax is rejected, not clamped", func(t *testing.T) {
		p := validCandidate()
		p.TaxAmount = -10
		p.TotalAmount = p.SalesAmount - 10
		_, err := v.Validate(p, "", "")
		assert.True(t, errors.Is(err, entity.ErrArithmeticMismatch))
	})

	t.Run("future date", func(t *testing.T) {
		p := validCandidate()
		p.InvoiceDate = time.Date(2026, 2, 2, 0, 0, 0, 0, time.Local)
		_, err := v.Validate(p, "", "")
		assert.True(t, errors.Is(err, entity.ErrFutureDate))
	})

	t.Run("today is not a future date", func(t *testing.T) {
		p := validCandidate()
		p.InvoiceDate = time.Date(2026, 2, 1, 0, 0, 0, 0, time.Local)
		_, err := v.Validate(p, "", "")
		assert.NoError(t, err)
	})

	t.Run("bad invoice number", func(t *testing.T) {
		p := validCandidate()
		p.InvoiceNumber = "A123456789"
		_, err := v.Validate(p, "", "")
		assert.True(t, errors.Is(err, entity.ErrFormat))
	})

	t.Run("bad random code length", func(t *testing.T) {
		p := validCandidate()
		p.RandomCode = "123"
		_, err := v.Validate(p, "", "")
		assert.True(t, errors.Is(err, entity.ErrFormat))
	})
}

// Randomized property: for any candidate built with total = sales + tax and
// non-negative tax, validation accepts and the identity holds on the entity.
func TestValidator_TotalIdentityProperty(t *testing.T) {
	v := NewValidator(fixedNow)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		sales := rng.Int63n(1_000_000)
		tax := rng.Int63n(50_000)

		p := validCandidate()
		p.SalesAmount = sales
		p.TaxAmount = tax
		p.TotalAmount = sales + tax

		inv, err := v.Validate(p, "", "")
		require.NoError(t, err)
		assert.Equal(t, inv.TotalAmount, inv.SalesAmount+inv.TaxAmount)

		// Any perturbation of the total must be rejected.
		p.TotalAmount++
		_, err = v.Validate(p, "", "")
		assert.True(t, errors.Is(err, entity.ErrArithmeticMismatch))
	}
}
