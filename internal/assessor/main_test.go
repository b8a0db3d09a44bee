package assessor

import (
	"testing"

	"go.uber.org/goleak"
)

// Timed-out assessments must not leave the call goroutine behind.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
