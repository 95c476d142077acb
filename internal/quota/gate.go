package quota

import (
	"fmt"

	"github.com/quicksheet-ai/quicksheet/internal/common"
	"github.com/quicksheet-ai/quicksheet/internal/entity"
)

// Gate decides whether an account may start an extraction run. Pure
// decision: the counter is mutated elsewhere, only after a successful run.
type Gate struct {
	FreeTierLimit int
}

func NewGate(freeTierLimit int) *Gate {
	return &Gate{FreeTierLimit: freeTierLimit}
}

// Authorize allows premium accounts unconditionally and free accounts that
// are still under the cap before the run starts. A run submitted under the
// cap is never blocked mid-flight, so the counter may land past the cap.
func (g *Gate) Authorize(account *entity.Account, imageCount int) error {
	if imageCount <= 0 {
		return fmt.Errorf("%w: no images submitted", common.ErrInvalidInput)
	}
	if account.IsPremium() {
		return nil
	}
	if account.UsageCount >= g.FreeTierLimit {
		return fmt.Errorf("%w: %d/%d image-units used", common.ErrTrialExhausted, account.UsageCount, g.FreeTierLimit)
	}
	return nil
}
