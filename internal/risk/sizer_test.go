package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/skalibog/hypetrader/internal/config"
	"github.com/skalibog/hypetrader/pkg/models"
)

func testSizer() *Sizer {
	return NewSizer(config.RiskConfig{
		RiskFraction: 0.01,
		KStop:        1.5,
		KTake:        3,
		MinStopFrac:  0.002,
	})
}

func TestPositionSize(t *testing.T) {
	s := testSizer()

	// 10000 * 0.01 / 5 = 20
	assert.InDelta(t, 20.0, s.PositionSize(10000, 100, 5, 0.01), 1e-9)

	// Стоп ограничен снизу 0.2% от цены: 100 / 0.2 = 500
	assert.InDelta(t, 500.0, s.PositionSize(10000, 100, 0, 0.01), 1e-9)
	assert.InDelta(t, 500.0, s.PositionSize(10000, 100, 0.0001, 0.01), 1e-9)
}

func TestPositionSizeZeroInputs(t *testing.T) {
	s := testSizer()

	assert.Zero(t, s.PositionSize(0, 100, 5, 0.01))
	assert.Zero(t, s.PositionSize(10000, 100, 5, 0))
	assert.Zero(t, s.PositionSize(-500, 100, 5, 0.01))
	assert.Zero(t, s.PositionSize(10000, 0, 0, 0.01))
}

func TestPositionSizeNonIncreasingInVolatility(t *testing.T) {
	s := testSizer()

	prev := s.PositionSize(10000, 100, 0, 0.02)
	for proxy := 0.01; proxy < 50; proxy *= 1.3 {
		qty := s.PositionSize(10000, 100, proxy, 0.02)
		assert.LessOrEqual(t, qty, prev, "proxy=%f", proxy)
		prev = qty
	}
}

func TestLevels(t *testing.T) {
	s := testSizer()

	stop, take := s.Levels(models.Long, 100, 2)
	assert.InDelta(t, 97.0, stop, 1e-9)
	assert.InDelta(t, 106.0, take, 1e-9)

	stop, take = s.Levels(models.Short, 100, 2)
	assert.InDelta(t, 103.0, stop, 1e-9)
	assert.InDelta(t, 94.0, take, 1e-9)
}
