package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/bsm/redislock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posledger/internal/core/apperror"
	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/core/types"
	"posledger/internal/domain/promo"
)

func TestPromoKey(t *testing.T) {
	codeID := id.MustParse("01890a5d-ac96-774b-bcce-b302099a8057")
	assert.Equal(t, "posledger:promo:01890a5d-ac96-774b-bcce-b302099a8057", promoKey(codeID))
}

func TestDecodePromo_RoundTripKeepsLimits(t *testing.T) {
	limit := int64(10)
	maxAmount := types.MustMoney("15.00")
	code := promo.Code{
		Base:              entity.NewBase(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)),
		Code:              "SUMMER10",
		Kind:              promo.KindPercentage,
		Value:             types.MustMoney("10"),
		MaxDiscountAmount: &maxAmount,
		UsageLimit:        &limit,
		TimesUsed:         3,
		Status:            promo.StatusActive,
		Active:            true,
	}

	payload, err := encodePromo(&code)
	require.NoError(t, err)
	decoded, err := decodePromo(payload)
	require.NoError(t, err)

	assert.Equal(t, code.ID, decoded.ID)
	assert.True(t, maxAmount.Equal(*decoded.MaxDiscountAmount))
	assert.Equal(t, limit, *decoded.UsageLimit)
	assert.Equal(t, int64(3), decoded.TimesUsed)
}

func TestDecodePromo_KeepsSoftDelete(t *testing.T) {
	deletedAt := time.Date(2025, 6, 20, 9, 0, 0, 0, time.UTC)
	code := promo.Code{
		Base:      entity.NewBase(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)),
		Code:      "GONE",
		Kind:      promo.KindFixedAmount,
		Value:     types.MustMoney("5"),
		DeletedAt: &deletedAt,
	}
	code.Version = 4

	payload, err := encodePromo(&code)
	require.NoError(t, err)
	decoded, err := decodePromo(payload)
	require.NoError(t, err)

	require.NotNil(t, decoded.DeletedAt)
	assert.True(t, deletedAt.Equal(*decoded.DeletedAt))
	assert.Equal(t, 4, decoded.Version)
}

func TestDecodePromo_Corrupt(t *testing.T) {
	_, err := decodePromo([]byte("{not json"))
	assert.Error(t, err)
}

func TestLockError(t *testing.T) {
	err := lockError("key-1", redislock.ErrNotObtained)
	assert.True(t, apperror.HasCode(err, apperror.CodeIdempotency))

	other := lockError("key-1", errors.New("dial tcp: refused"))
	assert.False(t, apperror.HasCode(other, apperror.CodeIdempotency))
	assert.ErrorContains(t, other, "obtain idempotency lock")
}
