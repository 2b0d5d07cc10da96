package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"gorm.io/gorm"

	"github.com/eazisol/Driptyard-backend/models"
)

// Defaults for verification codes.
const (
	CodeLength         = 6
	DefaultCodeTTL     = 15 * time.Minute
	DefaultMaxAttempts = 3
)

// Mailer delivers templated emails. Failures are surfaced to callers; the
// verification record is kept so a resend can recover.
type Mailer interface {
	Send(to, subject, body string) error
}

// CheckResult is the outcome of a verification code check.
type CheckResult int

const (
	CheckSuccess CheckResult = iota
	CheckInvalid
	CheckExpired
	CheckExhausted
)

func (r CheckResult) String() string {
	switch r {
	case CheckSuccess:
		return "success"
	case CheckInvalid:
		return "invalid"
	case CheckExpired:
		return "expired"
	case CheckExhausted:
		return "exhausted"
	}
	return "unknown"
}

// VerificationService issues and checks short-lived numeric codes. One
// component serves both targets: account email proof and listing
// activation. The attempt counter is incremented with a single guarded
// UPDATE so concurrent retries cannot exceed the cap.
type VerificationService struct {
	DB          *gorm.DB
	Mailer      Mailer
	TTL         time.Duration
	MaxAttempts int
}

func NewVerificationService(db *gorm.DB, mailer Mailer) *VerificationService {
	return &VerificationService{
		DB:          db,
		Mailer:      mailer,
		TTL:         DefaultCodeTTL,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// GenerateCode returns a fixed-length random numeric code.
func GenerateCode() (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(CodeLength), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", CodeLength, n), nil
}

// codeStore abstracts where a code lives: a row in email_verifications or
// the verification columns of a product. The lifecycle rules (supersede on
// issue, expiry, capped attempts, consume on success) are written once
// against this interface.
type codeStore interface {
	// load returns the outstanding code, or ok=false when none exists.
	load() (code string, expiresAt time.Time, ok bool, err error)
	// save replaces any prior outstanding code and resets attempts.
	save(code string, expiresAt time.Time) error
	// bumpAttempts atomically increments the attempt counter while it is
	// below limit. It returns false once the cap has been reached.
	bumpAttempts(limit int) (bool, error)
	// consume atomically removes the code while attempts are below limit.
	// It returns false once the cap has been reached.
	consume(limit int) (bool, error)
	// invalidate removes the code unconditionally.
	invalidate() error
}

func (s *VerificationService) issue(store codeStore) (string, error) {
	code, err := GenerateCode()
	if err != nil {
		return "", err
	}
	if err := store.save(code, time.Now().Add(s.TTL)); err != nil {
		return "", err
	}
	return code, nil
}

func (s *VerificationService) check(store codeStore, submitted string) (CheckResult, error) {
	code, expiresAt, ok, err := store.load()
	if err != nil {
		return CheckInvalid, err
	}
	if !ok {
		return CheckInvalid, nil
	}

	if time.Now().After(expiresAt) {
		if err := store.invalidate(); err != nil {
			return CheckExpired, err
		}
		return CheckExpired, nil
	}

	if submitted != code {
		bumped, err := store.bumpAttempts(s.MaxAttempts)
		if err != nil {
			return CheckInvalid, err
		}
		if !bumped {
			// Cap already reached; the code is dead, force a re-issue.
			if err := store.invalidate(); err != nil {
				return CheckExhausted, err
			}
			return CheckExhausted, nil
		}
		return CheckInvalid, nil
	}

	consumed, err := store.consume(s.MaxAttempts)
	if err != nil {
		return CheckInvalid, err
	}
	if !consumed {
		if err := store.invalidate(); err != nil {
			return CheckExhausted, err
		}
		return CheckExhausted, nil
	}
	return CheckSuccess, nil
}

// SendEmailCode issues a code for an email address and delivers it.
// Any prior outstanding code for the address is superseded.
func (s *VerificationService) SendEmailCode(email string) error {
	code, err := s.issue(&emailCodeStore{db: s.DB, email: email})
	if err != nil {
		return err
	}
	subject := "Verify your email address"
	body := fmt.Sprintf(
		"<p>Your verification code is <strong>%s</strong>.</p><p>It expires in %d minutes.</p>",
		code, int(s.TTL.Minutes()),
	)
	if err := s.Mailer.Send(email, subject, body); err != nil {
		return unavailablef("could not send verification email: %v", err)
	}
	return nil
}

// CheckEmailCode checks a submitted code against the outstanding record
// for the address.
func (s *VerificationService) CheckEmailCode(email, submitted string) (CheckResult, error) {
	return s.check(&emailCodeStore{db: s.DB, email: email}, submitted)
}

// SendProductCode issues a listing-activation code for a product and
// emails it to the owner.
func (s *VerificationService) SendProductCode(product *models.Product, ownerEmail string) error {
	code, err := s.issue(&productCodeStore{db: s.DB, productID: product.ID})
	if err != nil {
		return err
	}
	subject := "Verify your listing"
	body := fmt.Sprintf(
		"<p>Your verification code for <strong>%s</strong> is <strong>%s</strong>.</p><p>It expires in %d minutes.</p>",
		product.Title, code, int(s.TTL.Minutes()),
	)
	if err := s.Mailer.Send(ownerEmail, subject, body); err != nil {
		return unavailablef("could not send verification email: %v", err)
	}
	return nil
}

// CheckProductCode checks a submitted code against the product's
// outstanding verification sub-state.
func (s *VerificationService) CheckProductCode(productID uint, submitted string) (CheckResult, error) {
	return s.check(&productCodeStore{db: s.DB, productID: productID}, submitted)
}

// emailCodeStore keeps codes in the email_verifications table.
type emailCodeStore struct {
	db    *gorm.DB
	email string
}

func (e *emailCodeStore) load() (string, time.Time, bool, error) {
	var rec models.EmailVerification
	err := e.db.Where("email = ?", e.email).Order("created_at desc").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", time.Time{}, false, nil
	}
	if err != nil {
		return "", time.Time{}, false, err
	}
	return rec.Code, rec.ExpiresAt, true, nil
}

func (e *emailCodeStore) save(code string, expiresAt time.Time) error {
	return e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email = ?", e.email).Delete(&models.EmailVerification{}).Error; err != nil {
			return err
		}
		return tx.Create(&models.EmailVerification{
			Email:     e.email,
			Code:      code,
			ExpiresAt: expiresAt,
		}).Error
	})
}

func (e *emailCodeStore) bumpAttempts(limit int) (bool, error) {
	res := e.db.Model(&models.EmailVerification{}).
		Where("email = ? AND attempts < ?", e.email, limit).
		Update("attempts", gorm.Expr("attempts + 1"))
	return res.RowsAffected > 0, res.Error
}

func (e *emailCodeStore) consume(limit int) (bool, error) {
	res := e.db.Where("email = ? AND attempts < ?", e.email, limit).
		Delete(&models.EmailVerification{})
	return res.RowsAffected > 0, res.Error
}

func (e *emailCodeStore) invalidate() error {
	return e.db.Where("email = ?", e.email).Delete(&models.EmailVerification{}).Error
}

// productCodeStore keeps codes in the verification columns of the product
// row itself.
type productCodeStore struct {
	db        *gorm.DB
	productID uint
}

func (p *productCodeStore) load() (string, time.Time, bool, error) {
	var prod models.Product
	err := p.db.Select("verification_code", "verification_expires_at").
		First(&prod, p.productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", time.Time{}, false, nil
	}
	if err != nil {
		return "", time.Time{}, false, err
	}
	if prod.VerificationCode == "" || prod.VerificationExpiresAt == nil {
		return "", time.Time{}, false, nil
	}
	return prod.VerificationCode, *prod.VerificationExpiresAt, true, nil
}

func (p *productCodeStore) save(code string, expiresAt time.Time) error {
	return p.db.Model(&models.Product{}).Where("id = ?", p.productID).
		Updates(map[string]interface{}{
			"verification_code":       code,
			"verification_expires_at": expiresAt,
			"verification_attempts":   0,
		}).Error
}

func (p *productCodeStore) bumpAttempts(limit int) (bool, error) {
	res := p.db.Model(&models.Product{}).
		Where("id = ? AND verification_attempts < ?", p.productID, limit).
		Update("verification_attempts", gorm.Expr("verification_attempts + 1"))
	return res.RowsAffected > 0, res.Error
}

func (p *productCodeStore) consume(limit int) (bool, error) {
	res := p.db.Model(&models.Product{}).
		Where("id = ? AND verification_code <> '' AND verification_attempts < ?", p.productID, limit).
		Updates(map[string]interface{}{
			"verification_code":       "",
			"verification_expires_at": nil,
			"verification_attempts":   0,
		})
	return res.RowsAffected > 0, res.Error
}

func (p *productCodeStore) invalidate() error {
	return p.db.Model(&models.Product{}).Where("id = ?", p.productID).
		Updates(map[string]interface{}{
			"verification_code":       "",
			"verification_expires_at": nil,
			"verification_attempts":   0,
		}).Error
}
