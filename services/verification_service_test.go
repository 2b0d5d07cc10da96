package services

import (
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/eazisol/Driptyard-backend/models"
)

type sentMail struct {
	To      string
	Subject string
	Body    string
}

// fakeMailer records deliveries; set Err to simulate SMTP failure.
type fakeMailer struct {
	Sent []sentMail
	Err  error
}

func (m *fakeMailer) Send(to, subject, body string) error {
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Category{},
		&models.EmailVerification{},
		&models.PendingRegistration{},
	))
	return db
}

func newTestVerifier(t *testing.T) (*VerificationService, *fakeMailer, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	mailer := &fakeMailer{}
	return NewVerificationService(db, mailer), mailer, db
}

func storedEmailCode(t *testing.T, db *gorm.DB, email string) models.EmailVerification {
	t.Helper()
	var rec models.EmailVerification
	require.NoError(t, db.Where("email = ?", email).First(&rec).Error)
	return rec
}

func TestGenerateCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, CodeLength)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9', "code must be numeric: %s", code)
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 1, "codes should not repeat constantly")
}

func TestSendEmailCodeDeliversAndStores(t *testing.T) {
	svc, mailer, db := newTestVerifier(t)

	require.NoError(t, svc.SendEmailCode("buyer@example.com"))

	rec := storedEmailCode(t, db, "buyer@example.com")
	assert.Len(t, rec.Code, CodeLength)
	assert.Equal(t, 0, rec.Attempts)
	assert.WithinDuration(t, time.Now().Add(svc.TTL), rec.ExpiresAt, 5*time.Second)

	require.Len(t, mailer.Sent, 1)
	assert.Equal(t, "buyer@example.com", mailer.Sent[0].To)
	assert.Contains(t, mailer.Sent[0].Body, rec.Code)
}

func TestCheckEmailCodeSuccessConsumes(t *testing.T) {
	svc, _, db := newTestVerifier(t)
	require.NoError(t, svc.SendEmailCode("buyer@example.com"))
	rec := storedEmailCode(t, db, "buyer@example.com")

	result, err := svc.CheckEmailCode("buyer@example.com", rec.Code)
	require.NoError(t, err)
	assert.Equal(t, CheckSuccess, result)

	// The code is single-use; a replay finds nothing.
	result, err = svc.CheckEmailCode("buyer@example.com", rec.Code)
	require.NoError(t, err)
	assert.Equal(t, CheckInvalid, result)
}

func TestCheckEmailCodeWrongAttemptsCapped(t *testing.T) {
	svc, _, db := newTestVerifier(t)
	require.NoError(t, svc.SendEmailCode("buyer@example.com"))
	rec := storedEmailCode(t, db, "buyer@example.com")

	for i := 0; i < DefaultMaxAttempts; i++ {
		result, err := svc.CheckEmailCode("buyer@example.com", "000000")
		require.NoError(t, err)
		assert.Equal(t, CheckInvalid, result, "attempt %d", i+1)
	}

	// The cap is spent; even the right code no longer works.
	result, err := svc.CheckEmailCode("buyer@example.com", rec.Code)
	require.NoError(t, err)
	assert.Equal(t, CheckExhausted, result)

	var count int64
	require.NoError(t, db.Model(&models.EmailVerification{}).
		Where("email = ?", "buyer@example.com").Count(&count).Error)
	assert.Zero(t, count, "exhausted code must be invalidated")
}

func TestCheckEmailCodeExpired(t *testing.T) {
	svc, _, db := newTestVerifier(t)
	require.NoError(t, svc.SendEmailCode("buyer@example.com"))

	require.NoError(t, db.Model(&models.EmailVerification{}).
		Where("email = ?", "buyer@example.com").
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	rec := models.EmailVerification{}
	db.Where("email = ?", "buyer@example.com").First(&rec)

	result, err := svc.CheckEmailCode("buyer@example.com", rec.Code)
	require.NoError(t, err)
	assert.Equal(t, CheckExpired, result)

	var count int64
	db.Model(&models.EmailVerification{}).Where("email = ?", "buyer@example.com").Count(&count)
	assert.Zero(t, count)
}

func TestReissueSupersedesAndResetsAttempts(t *testing.T) {
	svc, _, db := newTestVerifier(t)
	require.NoError(t, svc.SendEmailCode("buyer@example.com"))
	first := storedEmailCode(t, db, "buyer@example.com")

	_, err := svc.CheckEmailCode("buyer@example.com", "000000")
	require.NoError(t, err)
	_, err = svc.CheckEmailCode("buyer@example.com", "000000")
	require.NoError(t, err)

	require.NoError(t, svc.SendEmailCode("buyer@example.com"))
	second := storedEmailCode(t, db, "buyer@example.com")
	assert.Equal(t, 0, second.Attempts)

	var count int64
	db.Model(&models.EmailVerification{}).Where("email = ?", "buyer@example.com").Count(&count)
	assert.EqualValues(t, 1, count, "only one outstanding code per address")

	result, err := svc.CheckEmailCode("buyer@example.com", first.Code)
	require.NoError(t, err)
	if first.Code != second.Code {
		assert.Equal(t, CheckInvalid, result, "superseded code must not verify")
	}
}

func TestSendEmailCodeMailerFailureKeepsRecord(t *testing.T) {
	svc, mailer, db := newTestVerifier(t)
	mailer.Err = errors.New("connection refused")

	err := svc.SendEmailCode("buyer@example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)

	// The record survives the delivery failure; a resend recovers.
	var count int64
	db.Model(&models.EmailVerification{}).Where("email = ?", "buyer@example.com").Count(&count)
	assert.EqualValues(t, 1, count)

	mailer.Err = nil
	require.NoError(t, svc.SendEmailCode("buyer@example.com"))
	require.Len(t, mailer.Sent, 1)
}

func TestProductCodeLifecycle(t *testing.T) {
	svc, mailer, db := newTestVerifier(t)

	product := models.Product{
		OwnerID: 1,
		Title:   "Vintage Jacket",
		Price:   decimal.NewFromInt(50),
		Status:  models.ProductStatusPending,
	}
	require.NoError(t, db.Create(&product).Error)

	require.NoError(t, svc.SendProductCode(&product, "seller@example.com"))
	require.Len(t, mailer.Sent, 1)
	assert.Contains(t, mailer.Sent[0].Body, product.Title)

	var stored models.Product
	require.NoError(t, db.First(&stored, product.ID).Error)
	require.Len(t, stored.VerificationCode, CodeLength)
	require.NotNil(t, stored.VerificationExpiresAt)

	result, err := svc.CheckProductCode(product.ID, "000000")
	require.NoError(t, err)
	assert.Equal(t, CheckInvalid, result)

	result, err = svc.CheckProductCode(product.ID, stored.VerificationCode)
	require.NoError(t, err)
	assert.Equal(t, CheckSuccess, result)

	// The sub-state is cleared on consume. Scan into a fresh struct:
	// gorm leaves pointer fields untouched when a column is NULL.
	stored = models.Product{}
	require.NoError(t, db.First(&stored, product.ID).Error)
	assert.Empty(t, stored.VerificationCode)
	assert.Nil(t, stored.VerificationExpiresAt)
	assert.Zero(t, stored.VerificationAttempts)

	result, err = svc.CheckProductCode(product.ID, stored.VerificationCode)
	require.NoError(t, err)
	assert.Equal(t, CheckInvalid, result)
}

func TestProductCodeExhaustion(t *testing.T) {
	svc, _, db := newTestVerifier(t)

	product := models.Product{OwnerID: 1, Title: "Sneakers", Price: decimal.NewFromInt(80)}
	require.NoError(t, db.Create(&product).Error)
	require.NoError(t, svc.SendProductCode(&product, "seller@example.com"))

	var stored models.Product
	require.NoError(t, db.First(&stored, product.ID).Error)

	for i := 0; i < DefaultMaxAttempts; i++ {
		result, err := svc.CheckProductCode(product.ID, "999999")
		require.NoError(t, err)
		assert.Equal(t, CheckInvalid, result)
	}

	result, err := svc.CheckProductCode(product.ID, stored.VerificationCode)
	require.NoError(t, err)
	assert.Equal(t, CheckExhausted, result)

	// Re-issue starts over with a fresh budget.
	require.NoError(t, svc.SendProductCode(&product, "seller@example.com"))
	require.NoError(t, db.First(&stored, product.ID).Error)
	assert.Zero(t, stored.VerificationAttempts)
	result, err = svc.CheckProductCode(product.ID, stored.VerificationCode)
	require.NoError(t, err)
	assert.Equal(t, CheckSuccess, result)
}
