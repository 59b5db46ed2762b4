// Package templates holds the canned user-facing reply bodies. The sender
// of an accepted email always receives exactly one reply, so every inbound
// failure category maps to a professionally-worded fallback body here.
package templates

import (
	"fmt"

	apperrors "github.com/mailmind/mailmind-backend/internal/errors"
)

const signature = "\n\nBest regards,\nThe Mailmind Team"

const rateLimitedBody = `Thank you for your email.

We're experiencing unusually high demand right now and couldn't process your request. Please try again in a few minutes - your question is worth asking twice.` + signature

const timeoutBody = `Thank you for your email.

Your request is taking longer than usual to process and we didn't want to keep you waiting without a word. Please resend your email and we'll pick it up fresh.` + signature

const refusalBody = `Thank you for your email.

We weren't able to help with this particular request. If you believe this is a mistake, try rephrasing your question and sending it again.` + signature

const genericBody = `Thank you for your email.

Something went wrong on our side while processing your request. Our team has been notified. Please try again shortly.` + signature

// ForKind returns the fallback reply body for an inbound-leg failure.
// SendFailure deliberately has no template: delivery failures are logged
// only and never answered with another email.
func ForKind(kind apperrors.Kind) string {
	switch kind {
	case apperrors.KindRateLimited:
		return rateLimitedBody
	case apperrors.KindTimeout:
		return timeoutBody
	case apperrors.KindRefusal:
		return refusalBody
	default:
		// AuthFailure intentionally gets the neutral apology; the
		// credential problem is an operator fault, not the user's.
		return genericBody
	}
}

// QuotaNotice is the upgrade email body sent instead of a model reply when
// the user's spend ceiling is reached.
func QuotaNotice(limitUSD float64) string {
	return fmt.Sprintf(`Thank you for your email.

You've reached your current usage limit of $%.2f for this billing period, so we couldn't generate a reply to this message.

To keep the conversation going, upgrade your plan at https://mailmind.io/upgrade - it only takes a minute.`, limitUSD) + signature
}

// SubscriptionNotice is sent when a paid account's subscription is no
// longer active.
func SubscriptionNotice() string {
	return `Thank you for your email.

Your subscription is currently inactive, so we couldn't generate a reply to this message. Please review your billing details at https://mailmind.io/account to restore access.` + signature
}
