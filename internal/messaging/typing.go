package messaging

import (
	"math/rand"
	"time"
)

// Typing cadence simulation constants. The delay grows with message length
// so replies feel typed rather than instantaneous.
const (
	typingBaseDelay   = 500 * time.Millisecond
	typingPerChar     = 35 * time.Millisecond
	typingCharCap     = 120
	typingMinDelay    = 600 * time.Millisecond
	typingMaxDelay    = 3500 * time.Millisecond
	typingJitter      = 125 * time.Millisecond
	typingAbsoluteMin = 400 * time.Millisecond
)

// TypingDelay computes how long to present the "composing" state before a
// message of the given length goes out.
func TypingDelay(messageLen int) time.Duration {
	chars := messageLen
	if chars > typingCharCap {
		chars = typingCharCap
	}
	delay := typingBaseDelay + time.Duration(chars)*typingPerChar
	if delay < typingMinDelay {
		delay = typingMinDelay
	} else if delay > typingMaxDelay {
		delay = typingMaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(2*typingJitter))) - typingJitter
	delay += jitter
	if delay < typingAbsoluteMin {
		delay = typingAbsoluteMin
	}
	return delay
}
