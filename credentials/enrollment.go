package credentials

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

const (
	EnrollmentPrefix = "MIRA"
	enrollmentDigits = 4
)

// FormatEnrollmentID renders n as MIRA0001-style id.
func FormatEnrollmentID(n int) string {
	return fmt.Sprintf("%s%0*d", EnrollmentPrefix, enrollmentDigits, n)
}

// ParseEnrollmentID returns the numeric part of a MIRA id.
func ParseEnrollmentID(id string) (int, error) {
	if !strings.HasPrefix(id, EnrollmentPrefix) {
		return 0, fmt.Errorf("[credentials ParseEnrollmentID] %q has no %s prefix", id, EnrollmentPrefix)
	}
	n, err := strconv.Atoi(strings.TrimPrefix(id, EnrollmentPrefix))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("[credentials ParseEnrollmentID] %q is not numbered", id)
	}
	return n, nil
}

// NextEnrollmentID proposes the id after the last recorded one. An absent or unreadable
// counter starts from MIRA0001.
func NextEnrollmentID(ctx context.Context, s Store) (string, error) {
	last, ok, err := s.Get(ctx, KeyLastEnrollmentID)
	if err != nil {
		return "", fmt.Errorf("[credentials NextEnrollmentID] %w", err)
	}
	if !ok {
		return FormatEnrollmentID(1), nil
	}
	n, err := ParseEnrollmentID(last)
	if err != nil {
		return FormatEnrollmentID(1), nil
	}
	return FormatEnrollmentID(n + 1), nil
}

// RecordEnrollmentID stores id as the last issued one. The counter never moves backwards.
func RecordEnrollmentID(ctx context.Context, s Store, id string) error {
	n, err := ParseEnrollmentID(id)
	if err != nil {
		return err
	}
	if last, ok, err := s.Get(ctx, KeyLastEnrollmentID); err == nil && ok {
		if prev, perr := ParseEnrollmentID(last); perr == nil && prev >= n {
			return nil
		}
	}
	if err := s.Set(ctx, KeyLastEnrollmentID, FormatEnrollmentID(n)); err != nil {
		return fmt.Errorf("[credentials RecordEnrollmentID] %w", err)
	}
	return nil
}

// ResetEnrollmentID rewinds the counter to MIRA0000.
func ResetEnrollmentID(ctx context.Context, s Store) error {
	if err := s.Set(ctx, KeyLastEnrollmentID, FormatEnrollmentID(0)); err != nil {
		return fmt.Errorf("[credentials ResetEnrollmentID] %w", err)
	}
	return nil
}
