package discount

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Discount{}, &DiscountUsage{}))
	return db
}

func activeDiscount(code string, typ DiscountType, value int64) *Discount {
	return &Discount{
		Code:      code,
		Type:      typ,
		Value:     value,
		StartDate: time.Now().Add(-time.Hour),
		IsActive:  true,
	}
}

func TestValidateUnknownCode(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	result, err := svc.Validate("NOPE", "sess-1", 10000)
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Equal(t, "Invalid discount code", result.Reason)
}

func TestValidateCaseInsensitive(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	require.NoError(t, db.Create(activeDiscount("SAVE10", DiscountTypePercentage, 10)).Error)

	result, err := svc.Validate("save10", "sess-1", 20000)
	require.NoError(t, err)
	assert.True(t, result.IsValid)
	assert.Equal(t, "SAVE10", result.Code)
	assert.Equal(t, int64(2000), result.Amount)
}

func TestValidateInactive(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	disc := activeDiscount("OFF", DiscountTypePercentage, 10)
	disc.IsActive = false
	require.NoError(t, db.Create(disc).Error)

	result, err := svc.Validate("OFF", "sess-1", 10000)
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Equal(t, "This discount code is not active", result.Reason)
}

func TestValidateNotStarted(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	disc := activeDiscount("SOON", DiscountTypePercentage, 10)
	disc.StartDate = time.Now().Add(24 * time.Hour)
	require.NoError(t, db.Create(disc).Error)

	result, err := svc.Validate("SOON", "sess-1", 10000)
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Equal(t, "This discount code is not active yet", result.Reason)
}

func TestValidateExpired(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	expired := time.Now().Add(-time.Minute)
	disc := activeDiscount("OLD", DiscountTypePercentage, 10)
	disc.ExpiryDate = &expired
	require.NoError(t, db.Create(disc).Error)

	result, err := svc.Validate("OLD", "sess-1", 10000)
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Equal(t, "This discount code has expired", result.Reason)
}

func TestValidateGlobalCap(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	disc := activeDiscount("CAPPED", DiscountTypePercentage, 10)
	disc.UsageLimit = 5
	disc.UsageCount = 5
	require.NoError(t, db.Create(disc).Error)

	result, err := svc.Validate("CAPPED", "sess-1", 10000)
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Equal(t, "This discount code has reached its usage limit", result.Reason)
}

func TestValidatePerGuestCapMessages(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	once := activeDiscount("ONCE", DiscountTypePercentage, 10)
	once.UsageLimitPerGuest = 1
	require.NoError(t, db.Create(once).Error)

	thrice := activeDiscount("THRICE", DiscountTypePercentage, 10)
	thrice.UsageLimitPerGuest = 3
	require.NoError(t, db.Create(thrice).Error)

	require.NoError(t, db.Create(&DiscountUsage{
		DiscountID: once.ID, SessionID: "sess-1", UsageCount: 1,
		FirstUsedAt: time.Now(), LastUsedAt: time.Now(),
	}).Error)
	require.NoError(t, db.Create(&DiscountUsage{
		DiscountID: thrice.ID, SessionID: "sess-1", UsageCount: 3,
		FirstUsedAt: time.Now(), LastUsedAt: time.Now(),
	}).Error)

	result, err := svc.Validate("ONCE", "sess-1", 10000)
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Equal(t, "This discount code can only be used once per customer", result.Reason)

	result, err = svc.Validate("THRICE", "sess-1", 10000)
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Equal(t, "This discount code can only be used 3 times per customer", result.Reason)

	// A different session is unaffected
	result, err = svc.Validate("ONCE", "sess-2", 10000)
	require.NoError(t, err)
	assert.True(t, result.IsValid)
}

func TestValidateMinimumOrder(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	disc := activeDiscount("BIG", DiscountTypeFixedAmount, 5000)
	disc.MinimumOrderAmount = 30000
	require.NoError(t, db.Create(disc).Error)

	result, err := svc.Validate("BIG", "sess-1", 20000)
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Contains(t, result.Reason, "minimum order of 300.00")

	result, err = svc.Validate("BIG", "sess-1", 30000)
	require.NoError(t, err)
	assert.True(t, result.IsValid)
	assert.Equal(t, int64(5000), result.Amount)
}

func TestComputeAmountPercentageRounding(t *testing.T) {
	// Banker's rounding to the nearest cent
	cases := []struct {
		subtotal int64
		percent  int64
		want     int64
	}{
		{20000, 10, 2000},
		{9999, 10, 1000},  // 999.9 rounds to 1000
		{10050, 5, 502},   // 502.5 rounds to even 502
		{10250, 5, 512},   // 512.5 rounds to even 512
		{333, 33, 110},    // 109.89 rounds to 110
		{0, 50, 0},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d_%d", tc.subtotal, tc.percent), func(t *testing.T) {
			disc := &Discount{Type: DiscountTypePercentage, Value: tc.percent}
			assert.Equal(t, tc.want, ComputeAmount(disc, tc.subtotal))
		})
	}
}

func TestComputeAmountFixedCappedAtSubtotal(t *testing.T) {
	disc := &Discount{Type: DiscountTypeFixedAmount, Value: 5000}
	assert.Equal(t, int64(5000), ComputeAmount(disc, 10000))
	assert.Equal(t, int64(3000), ComputeAmount(disc, 3000))
	assert.Equal(t, int64(0), ComputeAmount(disc, 0))
}

func TestComputeAmountMonotonicity(t *testing.T) {
	// A larger subtotal never yields a smaller percentage discount
	disc := &Discount{Type: DiscountTypePercentage, Value: 15}
	prev := int64(-1)
	for subtotal := int64(0); subtotal <= 5000; subtotal += 7 {
		amount := ComputeAmount(disc, subtotal)
		assert.GreaterOrEqual(t, amount, prev)
		assert.LessOrEqual(t, amount, subtotal)
		prev = amount
	}
}

func TestRecordUsageCreatesAndIncrements(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	disc := activeDiscount("USE", DiscountTypePercentage, 10)
	require.NoError(t, db.Create(disc).Error)

	require.NoError(t, svc.RecordUsage(db, "USE", "sess-1", "guest@example.com"))
	require.NoError(t, svc.RecordUsage(db, "USE", "sess-1", "guest@example.com"))

	var usage DiscountUsage
	require.NoError(t, db.Where("discount_id = ? AND session_id = ?", disc.ID, "sess-1").First(&usage).Error)
	assert.Equal(t, 2, usage.UsageCount)
	assert.Equal(t, "guest@example.com", usage.GuestEmail)

	var reloaded Discount
	require.NoError(t, db.First(&reloaded, disc.ID).Error)
	assert.Equal(t, 2, reloaded.UsageCount)
}

func TestRecordUsageEnforcesGlobalCap(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	disc := activeDiscount("CAP", DiscountTypePercentage, 10)
	disc.UsageLimit = 1
	disc.UsageCount = 1
	require.NoError(t, db.Create(disc).Error)

	err := svc.RecordUsage(db, "CAP", "sess-1", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotEligible)
}

func TestRecordUsageEnforcesPerGuestCap(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	disc := activeDiscount("PG", DiscountTypePercentage, 10)
	disc.UsageLimitPerGuest = 1
	require.NoError(t, db.Create(disc).Error)

	require.NoError(t, svc.RecordUsage(db, "PG", "sess-1", ""))

	err := svc.RecordUsage(db, "PG", "sess-1", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotEligible)

	// Other sessions are unaffected
	require.NoError(t, svc.RecordUsage(db, "PG", "sess-2", ""))
}

func TestRecordUsageUnknownCode(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	err := svc.RecordUsage(db, "GHOST", "sess-1", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotEligible)
}
