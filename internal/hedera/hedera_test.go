package hedera

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"unicode/utf8"

	sdk "github.com/hashgraph/hedera-sdk-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canhamzacode/tipjar/internal/models"
	"github.com/canhamzacode/tipjar/pkg/logger"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(Config{
		Network:     "testnet",
		NodeAccount: "0.0.3",
	}, logger.NewNop(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestTruncateMemo(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short", "thanks for the coffee", "thanks for the coffee"},
		{"exactly limit", strings.Repeat("a", 100), strings.Repeat("a", 100)},
		{"over limit", strings.Repeat("a", 150), strings.Repeat("a", 97) + "..."},
		// "é" is 2 bytes; 48 of them put bytes 96-97 inside one rune, so
		// the cut backs up to byte 96.
		{"cut lands mid rune", strings.Repeat("é", 75), strings.Repeat("é", 48) + "..."},
		{"multi byte under limit", strings.Repeat("é", 50), strings.Repeat("é", 50)},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateMemo(tt.in)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len(got), 100)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestToTinybar(t *testing.T) {
	tests := []struct {
		amount  string
		want    int64
		wantErr bool
	}{
		{"5", 500000000, false},
		{"0.01", 1000000, false},
		{"10.50", 1050000000, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"0.000000001", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got, err := toTinybar(tt.amount)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateAccountID(t *testing.T) {
	svc := newTestService(t)

	assert.NoError(t, svc.ValidateAccountID("0.0.1234"))

	err := svc.ValidateAccountID("not-an-account")
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestBuildUnsignedTransfer(t *testing.T) {
	svc := newTestService(t)

	unsigned, err := svc.BuildUnsignedTransfer(context.Background(),
		"0.0.1001", "0.0.1002", "5", "HBAR", "tip from @alice")
	require.NoError(t, err)

	assert.Equal(t, "0.0.1001", unsigned.SenderAccount)
	assert.Equal(t, "0.0.1002", unsigned.ReceiverAccount)
	assert.Equal(t, "5", unsigned.Amount)
	assert.Equal(t, "HBAR", unsigned.Token)

	raw, err := base64.StdEncoding.DecodeString(unsigned.TransactionBytes)
	require.NoError(t, err)

	parsed, err := sdk.TransactionFromBytes(raw)
	require.NoError(t, err)
	tx, ok := parsed.(sdk.TransferTransaction)
	require.True(t, ok, "bytes must round-trip to a transfer transaction")
	assert.Equal(t, "tip from @alice", tx.GetTransactionMemo())
}

func TestBuildUnsignedTransferRejectsBadInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	var verr *models.ValidationError

	_, err := svc.BuildUnsignedTransfer(ctx, "0.0.1", "0.0.2", "5", "DOGE", "")
	assert.ErrorAs(t, err, &verr)

	_, err = svc.BuildUnsignedTransfer(ctx, "bogus", "0.0.2", "5", "HBAR", "")
	assert.ErrorAs(t, err, &verr)

	_, err = svc.BuildUnsignedTransfer(ctx, "0.0.1", "0.0.2", "-5", "HBAR", "")
	assert.ErrorAs(t, err, &verr)
}

func TestSubmitSignedRejectsGarbage(t *testing.T) {
	svc := newTestService(t)

	var verr *models.ValidationError

	_, err := svc.SubmitSigned(context.Background(), "!!not-base64!!")
	assert.ErrorAs(t, err, &verr)

	_, err = svc.SubmitSigned(context.Background(), base64.StdEncoding.EncodeToString([]byte("junk")))
	assert.ErrorAs(t, err, &verr)
}
