package factory

import (
	"time"

	"github.com/skirmish-gg/skirmish/internal/contest"
	"github.com/skirmish-gg/skirmish/internal/dependencies/mocks"
	"github.com/skirmish-gg/skirmish/internal/match"
	"github.com/skirmish-gg/skirmish/internal/reaper"
	"github.com/skirmish-gg/skirmish/internal/server"
	"github.com/skirmish-gg/skirmish/internal/settle"
	"github.com/skirmish-gg/skirmish/internal/storage/memory"
	"github.com/skirmish-gg/skirmish/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
	Store      *memory.Storage
}

// NewTestApp creates an App configured for testing with mocked
// dependencies, an ephemeral port, and timings tightened for fast tests
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	srvCfg := server.Config{
		Addr:    "127.0.0.1:0",
		Workers: 2,
		Match: match.Config{
			PlayersPerContest: 2,
			RelaxPeriod:       5 * time.Second,
			RelaxQuantity:     50,
			RetryInterval:     10 * time.Millisecond,
		},
		Runner: contest.RunnerConfig{
			InputTimeout: 2 * time.Second,
			SettleDelay:  10 * time.Millisecond,
		},
		Reaper: reaper.Config{Interval: 50 * time.Millisecond, Grace: 30 * time.Second},
		Settle: settle.Config{Interval: 10 * time.Millisecond},
	}

	app := newWithDependencies(store, mockClock, mockRandom, srvCfg, testutil.NopLogger())

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
		Store:      store,
	}
}
