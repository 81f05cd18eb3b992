package utils

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"bitbucket.org/vmgroup/dealer_backend/config"
	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
	"github.com/ttacon/libphonenumber"
)

var CountryCode = "TH"

func IsValidEmail(email string) bool {
	// Basic email validation regex pattern
	pattern := `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	regex := regexp.MustCompile(pattern)
	return regex.MatchString(email)
}

func ValidatePhoneNumber(phoneNumber, countryCode string) error {
	p, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil {
		return err // Phone number is invalid
	}

	if !libphonenumber.IsValidNumber(p) {
		return fmt.Errorf("phone number is not valid")
	}

	return nil // Phone number is valid for the specified country code
}

// PhoneVariants returns the forms of a phone number a clerk might type when
// searching: the raw digits, the national form with a leading zero, and the
// E.164 form. Unparseable input falls back to the digit-stripped raw value.
func PhoneVariants(phoneNumber string) []string {
	raw := StripNonAlnum(phoneNumber)
	variants := []string{raw}

	p, err := libphonenumber.Parse(phoneNumber, CountryCode)
	if err == nil && libphonenumber.IsValidNumber(p) {
		national := fmt.Sprintf("0%d", p.GetNationalNumber())
		e164 := libphonenumber.Format(p, libphonenumber.E164)
		variants = append(variants, national, e164, strings.TrimPrefix(e164, "+"))
	}

	return UniqueSlice(variants)
}

// NormalizeSerials converts the serial field of a line item to a clean list.
// Upstream sends three shapes: a scalar, an array, or a comma-joined string.
// Comma-joined strings are split and trimmed; a leading comma left by upstream
// concatenation bugs yields an empty first element, which is dropped.
func NormalizeSerials(values ...string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			out = append(out, part)
		}
	}
	return UniqueSlice(out)
}

var nonAlnumRegexp = regexp.MustCompile(`[^a-zA-Z0-9]`)

// StripNonAlnum removes every non-alphanumeric (ASCII) character.
func StripNonAlnum(s string) string {
	return nonAlnumRegexp.ReplaceAllString(s, "")
}

func ProcessValidationErrors(err error) map[string]string {

	validationErrors := err.(validator.ValidationErrors)

	errorResponse := make(map[string]string)

	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}

	return errorResponse
}

func ConvertToLocalTime(utcTime time.Time, timezone string) time.Time {
	//init the loc
	loc, _ := time.LoadLocation(timezone)
	//set timezone,
	return utcTime.In(loc)
}

// returns slice removing duplicate elements
func UniqueSlice[T comparable](slice []T) []T {
	inResult := make(map[T]bool)
	var result []T
	for _, elm := range slice {
		if _, ok := inResult[elm]; !ok {
			// if not exists in map, append it, otherwise do nothing
			inResult[elm] = true
			result = append(result, elm)
		}
	}
	return result
}

// safely dereference pointer of type T, nil pointer return zero value or optional default
func DereferencePtr[T any](ptr *T, defaults ...T) T {
	var defaultValue T
	if len(defaults) > 0 {
		defaultValue = defaults[0]
	}
	if ptr == nil {
		return defaultValue
	}
	return *ptr
}

func NilIfEmpty[T comparable](ptr T) *T {
	var defaultZero T
	if ptr == defaultZero {
		return nil
	}
	return &ptr
}

// BranchLock takes a short best-effort Redis lock scoped to a branch. The
// database advisory lock is the real serialization point; this one only cuts
// down on wasted transaction retries when several messages for the same branch
// arrive together.
func BranchLock(ctx context.Context, branchCode string, lockType string, moduleName string, functionName string) error {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		// Avoid nil-pointer panics when Redis lock isn't initialized yet.
		config.LogError(logger, moduleName, functionName, "Redis lock not initialized", branchCode, errors.New("redis lock is nil"))
		return errors.New("service not ready (redis lock not initialized)")
	}
	lockKey := fmt.Sprintf("%s:%s", lockType, branchCode)
	lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, nil)
	if err == redislock.ErrNotObtained {
		config.LogError(logger, moduleName, functionName, "Could not obtain lock for branch", branchCode, err)
		return errors.New("could not obtain lock for branch")
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining lock for branch", branchCode, err)
		return err
	}
	defer func() {
		_ = lock.Release(ctx)
	}()

	return nil
}
