package importer

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuchilin/storeledger/internal/domain/entity"
)

func fixedNow() time.Time {
	return time.Date(2026, 2, 1, 12, 0, 0, 0, time.Local)
}

func validRecord() Record {
	return Record{
		Index: 1,
		Fields: map[string]string{
			ColTransactionID:   "TXN-001",
			ColTransactionDate: "2026-01-25",
			ColTransactionTime: "10:30:00",
			ColPaymentMethod:   "cash",
			ColGrossAmount:     "286",
			ColTaxAmount:       "14",
			ColNetAmount:       "300",
			ColDiscountAmount:  "0",
			ColIsRefund:        "false",
			ColIsVoid:          "false",
		},
	}
}

func TestNormalizer_Normalize(t *testing.T) {
	n := NewNormalizer(fixedNow)

	t.Run("accepts a valid row", func(t *testing.T) {
		txn, err := n.Normalize(validRecord())
		require.NoError(t, err)
		assert.Equal(t, "TXN-001", txn.TransactionID)
		assert.Equal(t, entity.PaymentCash, txn.PaymentMethod)
		assert.True(t, txn.NetAmount.Equal(decimal.NewFromInt(300)))
		assert.Equal(t, time.Date(2026, 1, 25, 10, 30, 0, 0, time.Local), txn.OccurredAt)
		assert.False(t, txn.IsRefund)
	})

	t.Run("accepts slash dates and short times", func(t *testing.T) {
		rec := validRecord()
		rec.Fields[ColTransactionDate] = "2026/01/25"
		rec.Fields[ColTransactionTime] = "10:30"
		txn, err := n.Normalize(rec)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 1, 25, 10, 30, 0, 0, time.Local), txn.OccurredAt)
	})

	t.Run("blank time means local midnight", func(t *testing.T) {
		rec := validRecord()
		rec.Fields[ColTransactionTime] = ""
		txn, err := n.Normalize(rec)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 1, 25, 0, 0, 0, 0, time.Local), txn.OccurredAt)
		assert.Equal(t, time.Date(2026, 1, 25, 0, 0, 0, 0, time.Local), txn.Date())
	})

	t.Run("blank discount defaults to zero", func(t *testing.T) {
		rec := validRecord()
		rec.Fields[ColDiscountAmount] = ""
		txn, err := n.Normalize(rec)
		require.NoError(t, err)
		assert.True(t, txn.DiscountAmount.IsZero())
	})

	t.Run("accepts refund with negative net", func(t *testing.T) {
		rec := validRecord()
		rec.Fields[ColGrossAmount] = "-48"
		rec.Fields[ColTaxAmount] = "-2"
		rec.Fields[ColNetAmount] = "-50"
		rec.Fields[ColIsRefund] = "true"
		txn, err := n.Normalize(rec)
		require.NoError(t, err)
		assert.True(t, txn.IsRefund)
		assert.True(t, txn.NetAmount.Equal(decimal.NewFromInt(-50)))
	})

	t.Run("rejects missing transaction id", func(t *testing.T) {
		rec := validRecord()
		rec.Fields[ColTransactionID] = ""
		_, err := n.Normalize(rec)
		assert.ErrorIs(t, err, entity.ErrFormat)
	})

	t.Run("rejects unknown payment method", func(t *testing.T) {
		rec := validRecord()
		rec.Fields[ColPaymentMethod] = "barter"
		_, err := n.Normalize(rec)
		var formatErr *entity.FormatError
		require.ErrorAs(t, err, &formatErr)
		assert.Equal(t, ColPaymentMethod, formatErr.Field)
	})

	t.Run("rejects amount identity violation", func(t *testing.T) {
		rec := validRecord()
		rec.Fields[ColNetAmount] = "301"
		_, err := n.Normalize(rec)
		assert.ErrorIs(t, err, entity.ErrArithmeticMismatch)
	})

	t.Run("discount enters the identity", func(t *testing.T) {
		rec := validRecord()
		rec.Fields[ColDiscountAmount] = "20"
		rec.Fields[ColNetAmount] = "280"
		txn, err := n.Normalize(rec)
		require.NoError(t, err)
		assert.True(t, txn.NetAmount.Equal(decimal.NewFromInt(280)))
	})

	t.Run("rejects negative discount", func(t *testing.T) {
		rec := validRecord()
		rec.Fields[ColDiscountAmount] = "-5"
		rec.Fields[ColNetAmount] = "305"
		_, err := n.Normalize(rec)
		assert.ErrorIs(t, err, entity.ErrFormat)
	})

	t.Run("rejects refund with positive net", func(t *testing.T) {
		rec := validRecord()
		rec.Fields[ColIsRefund] = "true"
		_, err := n.Normalize(rec)
		assert.ErrorIs(t, err, entity.ErrArithmeticMismatch)
	})

	t.Run("rejects future date", func(t *testing.T) {
		rec := validRecord()
		rec.Fields[ColTransactionDate] = "2026-02-02"
		_, err := n.Normalize(rec)
		var futureErr *entity.FutureDateError
		require.ErrorAs(t, err, &futureErr)
		assert.ErrorIs(t, err, entity.ErrFutureDate)
	})

	t.Run("accepts today", func(t *testing.T) {
		rec := validRecord()
		rec.Fields[ColTransactionDate] = "2026-02-01"
		rec.Fields[ColTransactionTime] = "23:59:59"
		_, err := n.Normalize(rec)
		assert.NoError(t, err)
	})

	t.Run("rejects malformed time", func(t *testing.T) {
		rec := validRecord()
		rec.Fields[ColTransactionTime] = "25:99"
		_, err := n.Normalize(rec)
		assert.ErrorIs(t, err, entity.ErrFormat)
	})

	t.Run("rejects non-numeric amount", func(t *testing.T) {
		rec := validRecord()
		rec.Fields[ColGrossAmount] = "ninety"
		_, err := n.Normalize(rec)
		assert.ErrorIs(t, err, entity.ErrFormat)
	})

	t.Run("strips thousands separators", func(t *testing.T) {
		rec := validRecord()
		rec.Fields[ColGrossAmount] = "1,886"
		rec.Fields[ColTaxAmount] = "94"
		rec.Fields[ColNetAmount] = "1,980"
		txn, err := n.Normalize(rec)
		require.NoError(t, err)
		assert.True(t, txn.NetAmount.Equal(decimal.NewFromInt(1980)))
	})
}

func TestDedupe(t *testing.T) {
	n := NewNormalizer(fixedNow)
	base, err := n.Normalize(validRecord())
	require.NoError(t, err)

	t.Run("unseen id is new", func(t *testing.T) {
		disposition, err := Dedupe(base, nil)
		assert.Equal(t, DispositionNew, disposition)
		assert.NoError(t, err)
	})

	t.Run("identical record is an idempotent duplicate", func(t *testing.T) {
		stored := *base
		stored.ID = 7
		stored.BatchID = "earlier-batch"
		disposition, err := Dedupe(base, &stored)
		assert.Equal(t, DispositionDuplicate, disposition)
		assert.ErrorIs(t, err, entity.ErrDuplicateRecord)
	})

	t.Run("same id with different values is a conflict", func(t *testing.T) {
		stored := *base
		stored.NetAmount = decimal.NewFromInt(999)
		stored.GrossAmount = decimal.NewFromInt(985)
		disposition, err := Dedupe(base, &stored)
		assert.Equal(t, DispositionConflict, disposition)

		var conflictErr *entity.ConflictingDuplicateError
		require.ErrorAs(t, err, &conflictErr)
		assert.Equal(t, "TXN-001", conflictErr.TransactionID)
		assert.ElementsMatch(t, []string{"gross_amount", "net_amount"}, conflictErr.Fields)
	})

	t.Run("flag flips are conflicts too", func(t *testing.T) {
		stored := *base
		stored.IsVoid = true
		disposition, err := Dedupe(base, &stored)
		assert.Equal(t, DispositionConflict, disposition)
		assert.ErrorIs(t, err, entity.ErrConflictingDuplicate)
	})
}
