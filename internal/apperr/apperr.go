// Package apperr defines the error taxonomy shared by all Amor services.
//
// Infrastructure failures stay plain wrapped errors. Expected business
// refusals (room full, chest on cooldown, not enough stars) are Rejection
// values carrying a user-facing reason; callers branch on the code instead
// of string-matching error text.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrForbidden = errors.New("forbidden")
)

// RejectCode identifies a class of expected refusal.
type RejectCode string

const (
	RejectRoomFull          RejectCode = "room_full"
	RejectInsufficientStars RejectCode = "insufficient_stars"
	RejectChestCooldown     RejectCode = "chest_cooldown"
	RejectInvalidMedia      RejectCode = "invalid_media"
	RejectSelfSwipe         RejectCode = "self_swipe"
)

// Rejection is a typed refusal with a user-facing reason. It is a normal
// outcome, not a failure: services return it instead of panicking or
// wrapping it as internal.
type Rejection struct {
	Code   RejectCode
	Reason string
}

func (r *Rejection) Error() string { return fmt.Sprintf("%s: %s", r.Code, r.Reason) }

// Reject builds a Rejection with a formatted reason.
func Reject(code RejectCode, format string, args ...any) *Rejection {
	return &Rejection{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// AsRejection unwraps err into a *Rejection if it is one.
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// HTTPStatus maps repo/infra/business errors onto HTTP status codes.
// Keeps handlers clean by centralizing the mapping.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case isRejection(err):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func isRejection(err error) bool {
	var rej *Rejection
	return errors.As(err, &rej)
}
